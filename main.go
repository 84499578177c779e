package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/kodiidok/qrc/internal/auth"
	"github.com/kodiidok/qrc/internal/config"
	"github.com/kodiidok/qrc/internal/database/migrations"
	"github.com/kodiidok/qrc/internal/kafka"
	"github.com/kodiidok/qrc/internal/logger"
	qr_db "github.com/kodiidok/qrc/internal/qrcodes/db"
	"github.com/kodiidok/qrc/internal/qrcodes/qr_api"
	"github.com/kodiidok/qrc/internal/qrcodes/qr_generator"
	qrcodes "github.com/kodiidok/qrc/internal/qrcodes/service"
	reports_api "github.com/kodiidok/qrc/internal/reports/api"
	sticker_db "github.com/kodiidok/qrc/internal/sticker/db"
	rediswrap "github.com/kodiidok/qrc/internal/sticker/redis"
	sticker "github.com/kodiidok/qrc/internal/sticker/service"
	"github.com/kodiidok/qrc/internal/sticker/sticker_api"
	"github.com/kodiidok/qrc/internal/teams"
	"github.com/kodiidok/qrc/internal/teams/team_api"
	visit_db "github.com/kodiidok/qrc/internal/visits/db"
	visits "github.com/kodiidok/qrc/internal/visits/service"
	"github.com/kodiidok/qrc/internal/visits/visit_api"

	"github.com/kodiidok/qrc/internal/reports"
)

func connectDatabase(cfg config.DatabaseConfig, logger *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	logger.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, addr string, logger *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	logger.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", addr))
	return client
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, strconv.Itoa(ww.Status()), time.Since(start).String())
		})
	}
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Exhibition Visit Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("CONFIG", err.Error())
	}

	ctx := context.Background()

	bunDB := connectDatabase(cfg.Database, logger)
	defer bunDB.Close()

	redisClient := connectRedis(ctx, cfg.Redis.Addr, logger)
	defer redisClient.Close()

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.MigrateUp(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
	}
	logger.Info("DATABASE", "Schema migrations applied")

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		logger.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", cfg.Kafka.Brokers))
		requiredTopics := []string{
			cfg.Kafka.Topics.VisitRecorded,
			cfg.Kafka.Topics.StickerDispensed,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			logger.Info("KAFKA", "Required topics ensured successfully")
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.VisitRecorded, cfg.Kafka.Topics.StickerDispensed)
		defer producer.Close()
		logger.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		logger.Warn("KAFKA", "Kafka disabled, events will not be published")
	}

	teamService := teams.NewService(bunDB)

	qrService := qrcodes.NewQRService(
		&qr_db.DB{Bun: bunDB},
		qr_generator.NewGenerator(256),
		cfg.Exhibition,
		logger,
	)

	var visitEvents visits.EventPublisher
	var stickerEvents sticker.EventPublisher
	if producer != nil {
		visitEvents = producer
		stickerEvents = producer
	}

	visitService := visits.NewVisitService(
		&visit_db.DB{Bun: bunDB},
		visitEvents,
		cfg.Exhibition,
		logger,
	)

	stickerService := sticker.NewStickerService(
		&sticker_db.DB{Bun: bunDB},
		rediswrap.NewRedis(redisClient),
		stickerEvents,
		cfg.Exhibition,
		logger,
	)

	reportService := reports.NewService(bunDB, cfg.Exhibition)

	visitHandler := &visit_api.Handler{
		VisitService: visitService,
		Codes:        qrService,
	}
	stickerHandler := &sticker_api.Handler{
		StickerService: stickerService,
	}
	qrHandler := &qr_api.Handler{
		QRService: qrService,
	}
	teamHandler := &team_api.Handler{
		TeamService: teamService,
	}
	reportHandler := reports_api.NewHandler(reportService, logger)

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(requestLogger(logger))

	// --- Public Routes ---
	r.Post("/team/{teamRef}/scan", visitHandler.TeamScan)
	r.Get("/visitor/status/{visitorQR}", visitHandler.VisitorStatus)
	r.Post("/api/check-qr", visitHandler.CheckQR)
	r.Post("/api/check-visitor", visitHandler.CheckVisitor)
	logger.Info("ROUTER", "Public scan and status endpoints registered")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		if cfg.Auth.JWTSecret != "" {
			r.Use(auth.Middleware(cfg.Auth.JWTSecret))
			logger.Info("AUTH", "JWT middleware applied to admin routes")
		} else {
			logger.Warn("AUTH", "ADMIN_JWT_SECRET not set, admin routes are UNPROTECTED")
		}

		r.Post("/admin/sticker-check", stickerHandler.StickerCheck)
		r.Post("/admin/dispense-sticker", stickerHandler.DispenseSticker)
		logger.Info("ROUTER", "Sticker routes registered under /admin")

		r.Post("/admin/generate-qr-codes", qrHandler.GenerateCodes)
		r.Post("/admin/qr-codes/reset", qrHandler.ResetCodes)
		r.Get("/admin/qr-codes/export", qrHandler.ExportCodes)
		r.Get("/admin/qr-codes/{code}/image", qrHandler.GetCodeImage)
		r.Post("/admin/qr-codes/print-batch", qrHandler.MarkPrinted)
		r.Post("/admin/qr-codes/distribute-batch", qrHandler.MarkDistributed)
		logger.Info("ROUTER", "QR code routes registered under /admin/qr-codes")

		r.Post("/admin/teams/import", teamHandler.ImportTeams)
		r.Get("/admin/teams", teamHandler.ListTeams)
		logger.Info("ROUTER", "Team routes registered under /admin/teams")

		reportHandler.RegisterRoutes(r)
		logger.Info("ROUTER", "Report routes registered under /admin")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("Exhibition Visit Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "Exhibition Visit Service shutdown complete")
	}
}
