package main

import (
	"context"
	"database/sql"
	"flag"
	"log"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/kodiidok/qrc/internal/config"
	"github.com/kodiidok/qrc/internal/database/migrations"
	qr_db "github.com/kodiidok/qrc/internal/qrcodes/db"
	"github.com/kodiidok/qrc/internal/qrcodes/qr_generator"
	qrcodes "github.com/kodiidok/qrc/internal/qrcodes/service"
)

// Schema management CLI: applies or rolls back migrations and can seed the
// initial QR code pool with sequential labels for pre-event printing.
func main() {
	down := flag.Bool("down", false, "roll back all migrations instead of applying them")
	seed := flag.Int("seed", 0, "after migrating, seed this many sequentially labelled QR codes")
	dir := flag.String("dir", "./migrations", "directory containing migration files")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN))
	sqldb := sql.OpenDB(connector)
	defer sqldb.Close()

	if err := sqldb.PingContext(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())

	runner := migrations.NewRunner(db, migrations.MigrateOptions{MigrationsDir: *dir})
	defer runner.Close()

	if *down {
		log.Println("Rolling back migrations...")
		if err := runner.MigrateDown(); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		log.Println("Done.")
		return
	}

	log.Println("Applying migrations...")
	if err := runner.MigrateUp(); err != nil {
		log.Fatalf("Migration up failed: %v", err)
	}

	if *seed > 0 {
		log.Printf("Seeding %d QR codes...", *seed)
		service := qrcodes.NewQRService(
			&qr_db.DB{Bun: db},
			qr_generator.NewGenerator(256),
			cfg.Exhibition,
			nil,
		)
		seeded, err := service.Seed(ctx, *seed)
		if err != nil {
			log.Fatalf("Seeding failed: %v", err)
		}
		log.Printf("Seeded %d QR codes", seeded)
	}

	log.Println("Done.")
}
