package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lineboard/ouservice/internal/config"
	"github.com/lineboard/ouservice/internal/events"
	"github.com/lineboard/ouservice/internal/fetch"
	"github.com/lineboard/ouservice/internal/leagues"
	"github.com/lineboard/ouservice/internal/logger"
	"github.com/lineboard/ouservice/internal/notify"
	"github.com/lineboard/ouservice/internal/scraper"
	"github.com/lineboard/ouservice/internal/server"
	"github.com/lineboard/ouservice/internal/settle"
	"github.com/lineboard/ouservice/internal/sportsdb"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	sportsDBClient := sportsdb.NewClient(
		cfg.SportsDB.BaseURL,
		cfg.SportsDB.APIKey,
		cfg.SportsDB.Timeout,
		cfg.SportsDB.MaxRetries,
		cfg.SportsDB.RetryDelayBase,
	)

	plainFetcher := fetch.NewHTTPFetcher(cfg.Scraper.Timeout, cfg.Scraper.UserAgent)
	var browserFetcher fetch.Fetcher
	if cfg.Scraper.Browser.Enabled {
		browserFetcher = fetch.NewBrowserFetcher(cfg.Scraper.Browser.Timeout, cfg.Scraper.UserAgent)
		logger.Info("Headless browser fetching enabled")
	} else {
		logger.Debug("Headless browser fetching disabled")
	}
	picker := fetch.NewPicker(plainFetcher, browserFetcher, cfg.Scraper.Browser.DynamicHosts)

	var modelParser scraper.LineParser
	if cfg.Scraper.Model.Enabled {
		modelParser = scraper.NewModelParser(
			cfg.Scraper.Model.BaseURL,
			cfg.Scraper.Model.APIKey,
			cfg.Scraper.Model.Name,
			cfg.Scraper.Model.Timeout,
		)
		logger.Info("Model-assisted parsing enabled (%s)", cfg.Scraper.Model.Name)
	}

	oddsScraper := scraper.New(
		picker,
		scraper.NewPatternParser(),
		modelParser,
		cfg.Scraper.MaxConcurrency,
		cfg.Scraper.Timeout,
	)

	var listener server.SettlementListener
	if cfg.Telegram.Enabled {
		notifier, err := notify.New(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram notifier: %v", err)
		}
		listener = notifier
		logger.Info("Telegram notifications enabled")
	}

	handler := server.NewHandler(
		leagues.NewFetcher(sportsDBClient),
		oddsScraper,
		events.NewCreator(sportsDBClient),
		settle.New(sportsDBClient),
		listener,
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.Router(cfg.Server.WriteTimeout),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed: %v", err)
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received, draining connections...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error: %v", err)
	}
	logger.Info("Server stopped")
}
