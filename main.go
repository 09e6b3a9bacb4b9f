package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ecoshop/ecoshop-go/internal/api"
	"github.com/ecoshop/ecoshop-go/internal/db"
	"github.com/ecoshop/ecoshop-go/internal/metrics"
	"github.com/ecoshop/ecoshop-go/internal/services"
	"github.com/ecoshop/ecoshop-go/internal/session"
	"github.com/ecoshop/ecoshop-go/pkg/config"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const cartSessionTTL = 24 * time.Hour

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	app := &cli.App{
		Name:           "ecoshop",
		Usage:          "online storefront service",
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP server",
				Action: runServe,
			},
			{
				Name:   "resync-slugs",
				Usage:  "regenerate every product slug from its current name",
				Action: runResyncSlugs,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("command failed")
	}
}

// bootstrap loads configuration and brings up metrics and the database.
func bootstrap(ctx context.Context) (*config.Config, *metrics.AppMetrics, *sdkmetric.MeterProvider, *db.DB, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, nil, err
	}

	appMetrics, meterProvider, err := metrics.InitMetrics(ctx, cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	database, err := db.NewDB(cfg.GetDSN(), cfg.OTELServiceName)
	if err != nil {
		shutdownMeterProvider(meterProvider)
		return nil, nil, nil, nil, err
	}

	return cfg, appMetrics, meterProvider, database, nil
}

func shutdownMeterProvider(meterProvider *sdkmetric.MeterProvider) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("error shutting down meter provider")
	}
}

func runServe(c *cli.Context) error {
	ctx := c.Context

	cfg, appMetrics, meterProvider, database, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer shutdownMeterProvider(meterProvider)
	defer database.Close()

	// Best effort schema bootstrap; a managed database may already
	// carry the schema.
	if schemaSQL, err := os.ReadFile("schema.sql"); err != nil {
		logrus.WithError(err).Warn("could not read schema.sql, assuming schema exists")
	} else if err := database.InitSchema(ctx, string(schemaSQL)); err != nil {
		logrus.WithError(err).Warn("could not initialize schema, assuming schema exists")
	}

	catalogService := services.NewCatalogService(database, appMetrics)
	orderService := services.NewOrderService(database, appMetrics)
	profileService := services.NewProfileService(database, appMetrics)
	userService := services.NewUserService(database, appMetrics)
	checkoutService := services.NewCheckoutService(orderService, profileService, appMetrics)
	sessionManager := session.NewManager(cfg.SessionSecret, cartSessionTTL, appMetrics)

	app := api.NewApp(cfg, database, appMetrics, sessionManager,
		catalogService, checkoutService, orderService, userService, profileService)

	router := mux.NewRouter()
	app.SetupRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.WithFields(logrus.Fields{
			"port":          cfg.AppPort,
			"otlp_endpoint": cfg.OTELExporterOTLPEndpoint,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logrus.Info("server exited")
	return nil
}

func runResyncSlugs(c *cli.Context) error {
	ctx := c.Context

	_, appMetrics, meterProvider, database, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer shutdownMeterProvider(meterProvider)
	defer database.Close()

	catalogService := services.NewCatalogService(database, appMetrics)
	updated, err := catalogService.ResyncSlugs(ctx)
	if err != nil {
		return err
	}

	logrus.WithField("updated", updated).Info("product slugs resynced")
	return nil
}
