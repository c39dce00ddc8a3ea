package rbac

import (
	"context"
	"strings"

	auth "github.com/cnpmnc/assignment/internal/auth/middleware"
)

// Checker answers permission questions for a fixed role policy. A grant
// ending in "*" covers every permission with that prefix; "*" alone covers all.
type Checker struct {
	exact    map[string]map[string]struct{}
	prefixes map[string][]string
}

func NewChecker(policy map[string][]string) *Checker {
	if policy == nil {
		policy = RolePermissions
	}
	c := &Checker{
		exact:    make(map[string]map[string]struct{}, len(policy)),
		prefixes: make(map[string][]string),
	}
	for role, grants := range policy {
		set := make(map[string]struct{}, len(grants))
		for _, g := range grants {
			if prefix, ok := strings.CutSuffix(g, "*"); ok {
				c.prefixes[role] = append(c.prefixes[role], prefix)
				continue
			}
			set[g] = struct{}{}
		}
		c.exact[role] = set
	}
	return c
}

func (c *Checker) Has(role, perm string) bool {
	if _, ok := c.exact[role][perm]; ok {
		return true
	}
	for _, p := range c.prefixes[role] {
		if strings.HasPrefix(perm, p) {
			return true
		}
	}
	return false
}

func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

// Manages reports whether id may manage a class or test owned by ownerID.
// Admins manage everything; teachers only their own.
func Manages(id auth.Identity, ownerID string) bool {
	if id.Role == RoleAdmin {
		return true
	}
	return id.Subject != "" && id.Subject == ownerID
}

// RoleFromContext returns the role of the authenticated caller, if any.
func RoleFromContext(ctx context.Context) string {
	id, _ := auth.IdentityFrom(ctx)
	return id.Role
}
