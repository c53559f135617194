package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"frontwatch/api"
	"frontwatch/cache"
	"frontwatch/db"
	"frontwatch/sentiment"
	"frontwatch/stats"
	"frontwatch/utils"
	"frontwatch/web"
)

func main() {
	envPath := flag.String("env", ".env", "Path to .env file")
	logLevel := flag.String("log-level", "debug", "Logging level (debug, info, warn, error)")
	flag.Parse()

	log := setupLogger(*logLevel)
	log.Info("Starting frontwatch")

	config, err := utils.LoadConfig(*envPath, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	log.WithFields(logrus.Fields{
		"window_size":      config.Tracker.WindowSize,
		"polling_interval": config.Tracker.PollingInterval,
		"server_port":      config.Server.Port,
	}).Info("Configuration loaded")

	database, err := db.NewDatabase(config.Database.Path, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer database.Close()

	redditAPI := api.NewRedditAPI(
		config.Reddit.ClientID,
		config.Reddit.ClientSecret,
		config.Reddit.UserAgent,
		config.Reddit.MaxRequestsPerMinute,
		log,
	)

	clock := clockwork.NewRealClock()
	responses := cache.New(time.Duration(config.Tracker.CacheTTL)*time.Second, clock)

	materializer := stats.NewMaterializer(database, redditAPI, sentiment.NewAnalyzer(), log)
	collector := stats.NewCollector(
		redditAPI,
		database,
		materializer,
		responses,
		config.Tracker.WindowSize,
		config.Tracker.PollingInterval,
		clock,
		log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := web.NewServer(database, responses, log, config.Reddit.MaxRequestsPerMinute)
	go startServer(ctx, server, config.Server.Port, log)

	go func() {
		if err := collector.Start(ctx); err != nil && err != context.Canceled {
			log.WithError(err).Error("Collector stopped unexpectedly")
		}
	}()

	waitForShutdown(cancel, log)
}

// setupLogger sets up the logger with the specified log level
func setupLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	switch level {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

// startServer runs the query-surface API server until the context is
// cancelled.
func startServer(ctx context.Context, e *echo.Echo, port int, log *logrus.Logger) {
	go func() {
		serverAddr := fmt.Sprintf(":%d", port)
		log.WithField("port", port).Info("Starting API server")
		if err := e.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("API server failed")
		}
	}()

	// wait for context cancellation to shut down server
	<-ctx.Done()
	log.Info("Shutting down API server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("API server shutdown failed")
	}
}

// waitForShutdown waits for a shutdown signal
func waitForShutdown(cancel context.CancelFunc, log *logrus.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithField("signal", sig.String()).Info("Shutdown signal received")

	cancel()

	time.Sleep(1 * time.Second)
	log.Info("frontwatch stopped")
}
