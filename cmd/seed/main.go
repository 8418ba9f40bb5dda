// seed inserts development sample data for local testing.
// Idempotent: skips inserts if the dev user (dev@example.com) already exists.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	companydomain "tenantauth/backend/internal/company/domain"
	companyrepo "tenantauth/backend/internal/company/repository"
	"tenantauth/backend/internal/config"
	"tenantauth/backend/internal/db"
	"tenantauth/backend/internal/security"
	userdomain "tenantauth/backend/internal/user/domain"
	userrepo "tenantauth/backend/internal/user/repository"
)

const (
	devEmail    = "dev@example.com"
	devPassword = "Dev-Password-123!"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	pool, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	users := userrepo.NewPostgresRepository(pool)
	companies := companyrepo.NewPostgresRepository(pool)

	existing, err := users.GetByEmail(ctx, devEmail)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	if existing != nil {
		log.Printf("seed: %s already exists, nothing to do", devEmail)
		return
	}

	now := time.Now().UTC()
	company := &companydomain.Company{
		ID:        uuid.New().String(),
		Name:      "Dev Company",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := companies.Create(ctx, company); err != nil {
		log.Fatalf("seed company: %v", err)
	}

	hash, err := security.NewHasher(cfg.BcryptCost).Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("seed: hash password: %v", err)
	}
	user := &userdomain.User{
		ID:           uuid.New().String(),
		CompanyID:    company.ID,
		Email:        devEmail,
		Name:         "Dev User",
		PasswordHash: hash,
		Status:       userdomain.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := users.Create(ctx, user); err != nil {
		log.Fatalf("seed user: %v", err)
	}

	fmt.Printf("seeded company %s and user %s (password %s)\n", company.ID, devEmail, devPassword)
}
