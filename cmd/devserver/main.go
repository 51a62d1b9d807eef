package main

import (
	"log"
	"time"

	"github.com/joho/godotenv"

	"taskchat/internal/config"
	"taskchat/internal/devserver"
	"taskchat/pkg/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := config.LoadConfig()
	zl := logger.New(cfg.AppMode)
	defer zl.Sync()

	srv := devserver.New(devserver.Config{
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  time.Duration(cfg.JWTExpiryMin) * time.Minute,
		Logger:    zl,
	})

	zl.Infof("reference server listening on :%s", cfg.ServerPort)
	if err := srv.Router().Run(":" + cfg.ServerPort); err != nil {
		zl.Errorf("server stopped: %v", err)
	}
}
