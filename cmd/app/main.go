package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FocusTracker/internal/config"
	"FocusTracker/pkg/log"
	"FocusTracker/pkg/redis"

	"github.com/joho/godotenv"
)

func main() {
	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Fatalf("Error loading .env file: %v", err)
	}

	focusConfig, err := config.LoadFocusConfig()
	if err != nil {
		logger.Fatal(err)
	}
	middlewareConfig, err := config.LoadMiddlewareConfig()
	if err != nil {
		logger.Fatal(err)
	}

	fiberApp := config.NewFiber(logger)
	validator := config.NewValidator()
	redisServer := redis.New(logger)

	server, err := config.NewServer(
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithAWSSession(),
		config.WithRekognition(),
		config.WithEventStore(),
		config.WithS3Client(),
		config.WithRedisServer(redisServer),
		config.WithGeminiClient(context.Background()),
		config.WithMiddleware(middlewareConfig),
		config.WithFocusConfig(focusConfig),
		config.WithUtils(),
	)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
}
