// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"researchllm/backend/internal/config"
	"researchllm/backend/internal/db"
	usagedomain "researchllm/backend/internal/usage/domain"
	usagerepo "researchllm/backend/internal/usage/repository"
	userdomain "researchllm/backend/internal/user/domain"
	userrepo "researchllm/backend/internal/user/repository"
)

const devUserEmail = "dev@example.com"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	users := userrepo.NewPostgresRepository(conn)
	records := usagerepo.NewPostgresRepository(conn)
	ctx := context.Background()

	existing, err := users.GetByEmail(ctx, devUserEmail)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Println("Seed already applied (dev@example.com exists). Skipping.")
		os.Exit(0)
	}

	// The dev user bypasses the auth provider, so its id is minted locally.
	devUser, err := users.Upsert(ctx, &userdomain.User{
		ID:       uuid.NewString(),
		Email:    devUserEmail,
		FullName: "Dev User",
		Company:  "Acme Dev",
		IsActive: true,
	})
	if err != nil {
		log.Fatalf("create dev user: %v", err)
	}

	now := time.Now().UTC()
	sample := []*usagedomain.Record{
		{UserID: devUser.ID, ModelUsed: "gpt-3.5-turbo", Provider: "mock", TokensUsed: 8, Cost: 0.0008, QueryType: "completion", CreatedAt: now.AddDate(0, 0, -2)},
		{UserID: devUser.ID, ModelUsed: "gpt-4", Provider: "mock", TokensUsed: 12, Cost: 0.0012, QueryType: "completion", CreatedAt: now.AddDate(0, 0, -1)},
		{UserID: devUser.ID, ModelUsed: "gpt-4", Provider: "mock", TokensUsed: 4, Cost: 0.0004, QueryType: "completion", CreatedAt: now},
	}
	for _, rec := range sample {
		if err := records.Insert(ctx, rec); err != nil {
			log.Fatalf("insert usage record: %v", err)
		}
	}

	log.Println("Seed completed successfully.")
	log.Printf("Dev user: %s (%s)", devUserEmail, devUser.ID)
}
