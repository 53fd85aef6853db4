// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"gorm.io/gorm"

	"github.com/gitsubas/blingblingstore-sub000/internal/config"
	"github.com/gitsubas/blingblingstore-sub000/internal/database"
	"github.com/gitsubas/blingblingstore-sub000/internal/i18n"
	"github.com/gitsubas/blingblingstore-sub000/internal/router"
	"github.com/gitsubas/blingblingstore-sub000/internal/services"
)

func main() {
	app := &cli.App{
		Name:   "blingbling-store",
		Usage:  "BlingBling Store API server",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the HTTP API server",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "apply or roll back the versioned SQL schema",
				Subcommands: []*cli.Command{
					{Name: "up", Usage: "apply all pending migrations", Action: migrateUp},
					{Name: "down", Usage: "roll back N migrations (default 1)", ArgsUsage: "[N]", Action: migrateDown},
					{Name: "version", Usage: "print the current schema version", Action: migrateVersion},
				},
			},
			{
				Name:   "seed",
				Usage:  "create the default admin and starter category",
				Action: seed,
			},
			{
				Name:  "import-products",
				Usage: "bulk load products from a CSV file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "path to the CSV file",
						Required: true,
					},
				},
				Action: importProducts,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("Command failed")
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	if cfg.IsProduction() || cfg.Log.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db); err != nil {
			return err
		}
	}

	if err := i18n.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize i18n: %w", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r, err := router.Initialize(db, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logrus.Info("Server exited")
	return nil
}

func withMigrator(fn func(*database.Migrator) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mg, err := database.NewMigrator(cfg.Database)
	if err != nil {
		return err
	}
	defer mg.Close()

	return fn(mg)
}

func migrateUp(c *cli.Context) error {
	return withMigrator(func(mg *database.Migrator) error {
		return mg.Up()
	})
}

func migrateDown(c *cli.Context) error {
	steps := 1
	if arg := c.Args().First(); arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid step count %q", arg)
		}
		steps = n
	}

	return withMigrator(func(mg *database.Migrator) error {
		return mg.Down(steps)
	})
}

func migrateVersion(c *cli.Context) error {
	return withMigrator(func(mg *database.Migrator) error {
		version, dirty, err := mg.Version()
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "version %d (dirty: %t)\n", version, dirty)
		return nil
	})
}

func seed(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	return database.SeedInitialData(db, cfg)
}

func importProducts(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	file, err := os.Open(c.String("file"))
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	importer := services.NewImportService(db, services.NewCategoryService(db))
	result, err := importer.ImportProducts(c.Context, file)
	if err != nil {
		return err
	}

	for _, rowErr := range result.Errors {
		logrus.WithField("row", rowErr.Row).Warn(rowErr.Message)
	}
	fmt.Fprintf(c.App.Writer, "imported %d products, %d rows failed\n", result.Created, result.Failed)
	return nil
}
