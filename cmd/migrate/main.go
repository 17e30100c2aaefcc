package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"opsdesk-assets-api/db"
	"opsdesk-assets-api/internal/migrate"
)

func main() {
	var (
		seed    = flag.Bool("seed", false, "Seed default asset categories after migrating")
		seedOrg = flag.Int64("seed-org", 1, "Organization ID to seed categories for")
	)
	flag.Parse()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		log.Fatal("Failed to open database connection:", err)
	}
	defer conn.Close()

	ctx := context.Background()
	if err := conn.PingContext(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	if err := migrate.Apply(ctx, conn, db.FS); err != nil {
		log.Fatal("Migration failed: ", err)
	}
	fmt.Println("All migrations applied successfully")

	if *seed {
		if err := migrate.SeedDefaultCategories(ctx, conn, db.FS, *seedOrg); err != nil {
			log.Fatal("Seeding failed: ", err)
		}
		fmt.Printf("Seeded default categories for org %d\n", *seedOrg)
	}
}
