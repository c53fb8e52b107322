package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BabyPolarisu/unimarket/internal/api"
	"github.com/BabyPolarisu/unimarket/internal/config"
	"github.com/BabyPolarisu/unimarket/internal/database"
	"github.com/BabyPolarisu/unimarket/internal/server"
	"github.com/BabyPolarisu/unimarket/internal/stats"
)

var configPath string

func main() {
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	logger := log.New(os.Stderr, "[unimarket] ", log.LstdFlags)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("config: ", err)
	}

	db, err := database.NewPgUniMarketRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open: ", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Fatal("db close: ", err)
		}
	}()

	if err := db.Migrate(); err != nil {
		logger.Fatal("migrate: ", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	chatServer, err := server.NewChatServer(logger, db, statsUpdater)
	if err != nil {
		logger.Fatal("new chat server: ", err)
	}

	app := api.NewUniMarketApp(mux, logger, chatServer, db, statsUpdater, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := app.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
