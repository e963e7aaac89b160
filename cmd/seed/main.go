package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/partnerhub-platform/api/internal/db"
	"github.com/partnerhub-platform/api/internal/store"
)

// Merchants are reference data: the import pipeline never creates them, so
// local development needs this seed before any CSV can land.
var merchants = []struct {
	slug string
	name string
}{
	{"amazon", "Amazon"},
	{"zalando", "Zalando"},
	{"asos", "ASOS"},
	{"shein", "SHEIN"},
	{"ebay", "eBay"},
	{"etsy", "Etsy"},
}

func main() {
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	pool, err := db.Connect(ctx, databaseURL)
	if err != nil {
		log.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	stores := store.New(pool)
	for _, m := range merchants {
		if _, err := stores.Merchants.Upsert(ctx, m.slug, m.name); err != nil {
			log.Fatalf("upsert merchant %s: %v", m.slug, err)
		}
	}

	fmt.Printf("Seed completed. %d merchants upserted.\n", len(merchants))
}
