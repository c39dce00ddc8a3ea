// Command adduser creates a user directly in the configured database.
//
//	adduser -username alice -password s3cret -role teacher
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cnpmnc/assignment/internal/config"
	"github.com/cnpmnc/assignment/internal/db"
	"github.com/cnpmnc/assignment/internal/users"
)

func main() {
	var (
		envFile  = flag.String("env", ".env", "optional dotenv file")
		username = flag.String("username", "", "login name (required)")
		password = flag.String("password", "", "password (required)")
		role     = flag.String("role", "student", "student|teacher|admin")
		email    = flag.String("email", "", "email address")
		name     = flag.String("name", "", "display name")
	)
	flag.Parse()
	if *username == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}
	switch *role {
	case "student", "teacher", "admin":
	default:
		log.Fatalf("invalid role %q", *role)
	}

	cfg := config.Load(*envFile)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()

	u, err := users.NewSQLStore(dbh).Create(ctx, users.User{
		Username:    *username,
		Email:       *email,
		DisplayName: *name,
		Role:        *role,
	}, *password)
	if err != nil {
		log.Fatalf("create user: %v", err)
	}
	fmt.Printf("created %s %s (%s)\n", u.Role, u.Username, u.ID)
}
