// Package joincode generates the short codes students type to join a class or
// a test.
package joincode

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	Length   = 6
	alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no 0/O, 1/I
)

// New returns a random upper-case code of Length characters.
func New() (string, error) {
	buf := make([]byte, Length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}

// Normalize upper-cases and trims a user-typed code.
func Normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
