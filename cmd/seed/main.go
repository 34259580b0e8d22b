package main

import (
	"context"
	"log"
	"time"

	"milk-subscription-be/internal/config"
	"milk-subscription-be/internal/entity"
	"milk-subscription-be/internal/pkg/serverutils"
	"milk-subscription-be/internal/repository/specification"
	"milk-subscription-be/internal/repository/unitofwork"
	"milk-subscription-be/pkg/database"

	"github.com/google/uuid"
)

var demoUsers = []entity.User{
	{Email: "asha@example.com", FullName: "Asha Rao", Phone: "+919800000001", Address: "12 MG Road, Bengaluru"},
	{Email: "vikram@example.com", FullName: "Vikram Nair", Phone: "+919800000002", Address: "4 Park Street, Kolkata"},
}

func main() {
	cfg := config.Load()

	db, err := database.NewGormDBFromDSN(cfg.Database.Driver, cfg.Database.Connection, cfg.IsProduction())
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	ctx := context.Background()
	uow := unitofwork.NewRepositoryFactory(db).NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		log.Fatalf("Error: begin: %v", err)
	}
	defer uow.Rollback()

	log.Println("Seeding demo users...")

	seeded := make([]*entity.User, 0, len(demoUsers))
	for _, u := range demoUsers {
		existing, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: u.Email})
		if err != nil {
			log.Fatalf("Error: lookup %s: %v", u.Email, err)
		}
		if existing != nil {
			log.Printf("User '%s' already exists, skipping...", u.Email)
			seeded = append(seeded, existing)
			continue
		}

		user := u
		user.Id = uuid.New()
		if err := uow.UserRepository().Create(ctx, &user); err != nil {
			log.Fatalf("Error: create %s: %v", u.Email, err)
		}
		log.Printf("Created user: %s (%s)", user.FullName, user.Id)
		seeded = append(seeded, &user)
	}

	if err := uow.Commit(); err != nil {
		log.Fatalf("Error: commit: %v", err)
	}

	if cfg.App.JwtSecret == "" {
		log.Println("JWT_SECRET is not set, skipping demo tokens")
		return
	}
	for _, u := range seeded {
		token, err := serverutils.GenerateToken(cfg.App.JwtSecret, u.Id, 24*time.Hour)
		if err != nil {
			log.Fatalf("Error: token for %s: %v", u.Email, err)
		}
		log.Printf("Bearer token for %s: %s", u.Email, token)
	}

	log.Println("Seeding completed!")
}
