package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"taskdeck/internal/config"
	"taskdeck/internal/identity"
	"taskdeck/internal/store/firestore"
	"taskdeck/internal/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	taskStore, err := firestore.New(context.Background(), cfg.ProjectID, cfg.Collection)
	if err != nil {
		log.Fatalf("Failed to create task store: %v", err)
	}
	defer taskStore.Close()

	dir := identity.NewDirectory(cfg.Identity.Users)
	app := web.NewServer(taskStore, dir, cfg.NoticeTTL())

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	app.Register(e)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", cfg.Listen)
		if err := e.Start(cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
	app.Close()
}
