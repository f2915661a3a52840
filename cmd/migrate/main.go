package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"quiz-forge/internal/config"
	"quiz-forge/internal/database"
	"quiz-forge/internal/logger"

	"go.uber.org/zap"
)

const usage = `usage: migrate <command>

commands:
  up              apply all pending migrations
  down [--all]    roll back one migration, or all of them
  version         print the current schema version
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	downFlags := flag.NewFlagSet("down", flag.ExitOnError)
	all := downFlags.Bool("all", false, "roll back every migration")

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Initialize(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Get()

	ctx := context.Background()
	db, err := database.NewSQLXOracleDB(ctx, cfg.DB.Driver, cfg.GetDSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	migrator, err := database.NewEmbeddedMigrator(db.DB)
	if err != nil {
		log.Fatal("Failed to load migrations", zap.Error(err))
	}
	defer migrator.Close()

	switch command {
	case "up":
		applied, err := migrator.Up(ctx)
		if err != nil {
			log.Fatal("Migration failed", zap.Int("applied", applied), zap.Error(err))
		}
		fmt.Printf("Migrations applied successfully! (%d applied)\n", applied)
	case "down":
		if err := downFlags.Parse(os.Args[2:]); err != nil {
			log.Fatal("Invalid arguments", zap.Error(err))
		}
		steps := 1
		if *all {
			steps = 0
		}
		n, err := migrator.Down(ctx, steps)
		if err != nil {
			log.Fatal("Rollback failed", zap.Int("rolled_back", n), zap.Error(err))
		}
		if *all {
			fmt.Println("Successfully rolled back all migrations")
		} else {
			fmt.Printf("Successfully rolled back %d migration(s)\n", n)
		}
	case "version":
		version, dirty, err := migrator.Version(ctx)
		if err != nil {
			log.Fatal("Failed to read schema version", zap.Error(err))
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}
