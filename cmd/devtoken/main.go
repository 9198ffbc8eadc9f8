// Command devtoken prints an access token for a user in the local database.
// Identity is issued by a separate service in production; this stands in for
// it during development.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/eventify/eventify-api/internal/config"
	"github.com/eventify/eventify-api/internal/domain/user"
	"github.com/eventify/eventify-api/internal/pkg/database"
	"github.com/eventify/eventify-api/internal/pkg/jwt"
)

func main() {
	email := flag.String("email", "", "email of the user to sign a token for")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to JWT_ACCESS_TTL)")
	flag.Parse()

	if *email == "" {
		fmt.Fprintln(os.Stderr, "usage: devtoken -email someone@example.com [-ttl 24h]")
		os.Exit(2)
	}

	cfg := config.Load()
	if cfg.IsProduction() {
		log.Fatal("devtoken refuses to run with ENV=production")
	}

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.ClosePostgres(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	u, err := user.NewRepository(db).GetByEmail(ctx, *email)
	if err != nil {
		log.Fatalf("Failed to look up user: %v", err)
	}
	if u == nil {
		log.Fatalf("No user with email %s", *email)
	}

	accessTTL := cfg.JWTAccessTTL
	if *ttl > 0 {
		accessTTL = *ttl
	}

	token, err := jwt.NewService(cfg.JWTSecret, accessTTL).GenerateAccessToken(u.ID, string(u.Role))
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	fmt.Printf("user:   %s (%s, %s)\n", u.ID, u.Email, u.Role)
	fmt.Printf("points: %d\n", u.Points)
	fmt.Printf("token:  %s\n", token)
}
