package main

import (
	"context"
	"log"
	"os"
	"sort"
	"time"

	"workflow-backend/internal/admin"
	"workflow-backend/internal/auth"
	"workflow-backend/internal/captation"
	"workflow-backend/internal/config"
	"workflow-backend/internal/db"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type seedCategory struct {
	Name  string
	Color string
}

type seedUser struct {
	Username    string
	Email       string
	PasswordEnv string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		log.Fatal(err)
	}

	refs := captation.NewRepository(cols)

	states := captation.StateCodes()
	codes := make([]string, 0, len(states))
	for code := range states {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		if _, err := refs.EnsureState(ctx, code, states[code]); err != nil {
			log.Fatalf("seed state %s: %v", code, err)
		}
	}
	log.Printf("seed states: %d ensured", len(codes))

	categories := []seedCategory{
		{Name: "Restaurante", Color: "#E4572E"},
		{Name: "Salão de beleza", Color: "#D6336C"},
		{Name: "Clínica", Color: "#17A2B8"},
		{Name: "Academia", Color: "#28A745"},
		{Name: "Pet shop", Color: "#FD7E14"},
		{Name: "Oficina mecânica", Color: "#6C757D"},
		{Name: "Advocacia", Color: "#343A40"},
		{Name: "Contabilidade", Color: "#6F42C1"},
		{Name: "Imobiliária", Color: "#20C997"},
		{Name: "Loja", Color: "#007BFF"},
	}
	now := time.Now().In(cfg.Timezone)
	for _, c := range categories {
		_, err := refs.GetOrCreateCategory(ctx, captation.Category{
			Name:      c.Name,
			NameKey:   captation.NameKey(c.Name),
			Color:     c.Color,
			CreatedAt: now,
		})
		if err != nil {
			log.Fatalf("seed category %s: %v", c.Name, err)
		}
	}
	log.Printf("seed categories: %d ensured", len(categories))

	users := admin.NewRepository(cols.Users)
	adminUsers := []seedUser{
		{
			Username:    envOrDefault("ADMIN_USER", "admin"),
			Email:       envOrDefault("ADMIN_EMAIL", ""),
			PasswordEnv: "ADMIN_PASSWORD",
		},
		{
			Username:    envOrDefault("ADMIN_USER_2", "admin2"),
			Email:       envOrDefault("ADMIN_EMAIL_2", ""),
			PasswordEnv: "ADMIN_PASSWORD_2",
		},
	}
	for _, u := range adminUsers {
		password := os.Getenv(u.PasswordEnv)
		if password == "" {
			log.Printf("seed admin: %s missing, skipping (%s)", u.Username, u.PasswordEnv)
			continue
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			log.Fatalf("seed admin %s: %v", u.Username, err)
		}
		err = users.Upsert(ctx, admin.User{
			ID:           primitive.NewObjectID().Hex(),
			Username:     u.Username,
			Email:        u.Email,
			PasswordHash: hash,
			Role:         auth.RoleAdmin,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			log.Fatalf("seed admin %s: %v", u.Username, err)
		}
	}

	log.Println("seed completed")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
