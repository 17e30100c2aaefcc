package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"opsdesk-assets-api/pkg/exporter"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	var (
		outPath    = flag.String("out", "assignments.xlsx", "Output file path")
		orgID      = flag.Int64("org-id", 0, "Organization ID (required)")
		activeOnly = flag.Bool("active", false, "Export only open assignments")
	)
	flag.Parse()

	if *orgID <= 0 {
		fmt.Println("Usage: export_excel --org-id=... [--out=assignments.xlsx] [--active]")
		os.Exit(1)
	}

	dbURL := os.Getenv("DB_DSN")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	db, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	f, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	summary, err := exporter.ExportAssignments(context.Background(), db, f, exporter.ExportOptions{
		OrgID:      *orgID,
		ActiveOnly: *activeOnly,
	})
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}

	fmt.Printf("Wrote %d assignment rows to %s (active_only=%v)\n", summary.Rows, *outPath, summary.ActiveOnly)
}
