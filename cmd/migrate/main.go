package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"safehaven-service/internal/config"
	"safehaven-service/internal/domain/account"
	"safehaven-service/internal/domain/identity"
	"safehaven-service/internal/domain/token"
	"safehaven-service/internal/domain/webhook"
	"safehaven-service/pkg/database"

	"github.com/joho/godotenv"
)

const usage = `
SafeHaven Service - Database CLI Tool

Usage:
  migrate [command] [flags]

Commands:
  up          Run all migrations (SQL + GORM)
  status      Show database connection status
  reset       Drop all tables and re-run migrations (DANGEROUS)

Flags:
  -migrations string   Path to migrations directory (default "migrations")

Examples:
  go run cmd/migrate/main.go up
  go run cmd/migrate/main.go reset
`

var tables = []interface{}{
	&webhook.EventLog{},
	&identity.Mapping{},
	&token.AccessToken{},
	&token.RefreshToken{},
	&account.SafeHaven{},
}

func main() {
	migrationsDir := flag.String("migrations", "migrations", "Path to migrations directory")

	flag.Usage = func() {
		fmt.Print(usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	database.Connect(cfg)

	switch flag.Arg(0) {
	case "up":
		runUp(*migrationsDir)
	case "status":
		runStatus()
	case "reset":
		runReset(*migrationsDir)
	default:
		flag.Usage()
		os.Exit(1)
	}
}

func runUp(migrationsDir string) {
	if err := database.ApplyRawMigrations(migrationsDir); err != nil {
		log.Fatalf("Failed to apply raw migrations: %v", err)
	}
	if err := database.DB.AutoMigrate(tables...); err != nil {
		log.Fatalf("Failed to apply GORM migrations: %v", err)
	}
	log.Println("Migrations applied")
}

func runStatus() {
	sqlDB, err := database.DB.DB()
	if err != nil {
		log.Fatalf("Failed to get database handle: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Database unreachable: %v", err)
	}
	log.Println("Database connection OK")
}

func runReset(migrationsDir string) {
	if err := database.DB.Migrator().DropTable(tables...); err != nil {
		log.Fatalf("Failed to drop tables: %v", err)
	}
	log.Println("Dropped all tables")
	runUp(migrationsDir)
}
