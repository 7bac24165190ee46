package main

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/org-hierarchy-api/internal/config"
	"github.com/org-hierarchy-api/internal/handler"
	"github.com/org-hierarchy-api/internal/metrics"
	"github.com/org-hierarchy-api/internal/repository"
	"github.com/org-hierarchy-api/internal/service"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var embedMigrations embed.FS

func main() {
	// .env необязателен, переменные окружения имеют приоритет
	envFiles, envErr := config.LoadEnvFiles(".env", ".env.local")

	// Загрузка конфигурации
	cfg := config.Load()

	// Инициализация логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if envErr != nil {
		logger.Warn("failed to load env files", slog.Any("error", envErr))
	} else if envFiles > 0 {
		logger.Debug("env files loaded", slog.Int("count", envFiles))
	}

	// Подключение к хранилищу
	store, closeStore, err := openStore(cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open store", slog.String("driver", cfg.Database.Driver), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	// Метрики
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Инициализация сервисов и хендлеров
	chartService := service.NewOrgChartService(store, m, logger, cfg.Server.SessionIdleTimeout)
	chartHandler := handler.NewChartHandler(chartService, logger)

	// Настройка роутера
	router := handler.NewRouter(chartHandler, registry, logger)
	httpHandler := router.Setup()

	// Настройка HTTP сервера
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      httpHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("could not gracefully shutdown the server", slog.Any("error", err))
		}
		close(done)
	}()

	logger.Info("server is starting",
		slog.String("port", cfg.Server.Port),
		slog.String("driver", cfg.Database.Driver),
	)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("could not listen on port", slog.String("port", cfg.Server.Port), slog.Any("error", err))
		os.Exit(1)
	}

	<-done
	logger.Info("server stopped")
}

// openStore открывает хранилище выбранного драйвера и применяет миграции
func openStore(cfg config.DatabaseConfig, logger *slog.Logger) (repository.Store, func(), error) {
	if cfg.Driver == config.DriverMemory {
		logger.Warn("using in-memory store, data will be lost on restart")
		return repository.NewMemoryStore(), func() {}, nil
	}

	var (
		db      *gorm.DB
		dialect string
		err     error
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err = connectDB(postgres.Open(cfg.DSN()))
		dialect = "postgres"
	case config.DriverSQLite:
		db, err = connectDB(sqlite.Open(cfg.SQLitePath))
		dialect = "sqlite3"
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.Driver == config.DriverSQLite {
		// SQLite не допускает параллельных писателей
		sqlDB.SetMaxOpenConns(1)
	}

	// Запуск миграций
	if err := runMigrations(sqlDB, dialect, "migrations/"+cfg.Driver); err != nil {
		sqlDB.Close()
		return nil, nil, err
	}

	return repository.NewStore(db), func() { sqlDB.Close() }, nil
}

func connectDB(dialector gorm.Dialector) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for range 30 {
		db, err = gorm.Open(dialector, &gorm.Config{
			Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
			TranslateError: true,
		})
		if err == nil {
			sqlDB, _ := db.DB()
			if err = sqlDB.Ping(); err == nil {
				return db, nil
			}
		}
		time.Sleep(time.Second)
	}

	return nil, fmt.Errorf("failed to connect to database after 30 attempts: %w", err)
}

func runMigrations(db *sql.DB, dialect, dir string) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
