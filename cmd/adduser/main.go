// cmd/adduser/main.go
// Creates or updates an ops API user in the database.
//
// Usage:
//
//	go run ./cmd/adduser -username padraic -password testing
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"

	"github.com/padraicbc/raceflow/config"
	bundb "github.com/padraicbc/raceflow/db"
	"github.com/padraicbc/raceflow/models"
	"github.com/padraicbc/raceflow/store"
)

func main() {
	username := flag.String("username", "", "username (required)")
	password := flag.String("password", "", "plain-text password (required)")
	flag.Parse()

	if *username == "" || *password == "" {
		log.Fatal("both -username and -password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("bcrypt:", err)
	}

	cfg := config.Load()
	db := bundb.Setup(cfg)
	defer db.Close()

	user := &models.User{
		Username: *username,
		Password: string(hash),
	}
	if err := store.New(db).SaveUser(context.Background(), user); err != nil {
		log.Fatal("save user:", err)
	}

	fmt.Printf("user %q saved\n", *username)
}
