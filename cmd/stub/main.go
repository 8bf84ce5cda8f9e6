package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatflow/client/internal/config"
	"chatflow/client/internal/logging"
	"chatflow/client/internal/stub"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := config.LoadDotenv(); err != nil {
		logrus.Warn("Warning: Error loading .env file")
	}
	logger := logging.New(os.Getenv("CHATFLOW_LOG_LEVEL"), os.Stderr)
	log := logging.Component(logger, "stub")

	addr := os.Getenv("CHATFLOW_STUB_ADDR")
	if addr == "" {
		addr = ":3001"
	}

	opts := []stub.Option{stub.WithLogger(log)}
	if secret := os.Getenv("CHATFLOW_STUB_SECRET"); secret != "" {
		opts = append(opts, stub.WithSecret(secret))
	}
	if raw := os.Getenv("CHATFLOW_STUB_ACCESS_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("CHATFLOW_STUB_ACCESS_TTL: %v", err)
		}
		opts = append(opts, stub.WithAccessTTL(ttl))
	}
	srv := stub.New(opts...)
	defer srv.Close()

	if os.Getenv("CHATFLOW_STUB_SEED") != "" {
		seed(srv, log)
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdown)
	}()

	log.WithField("addr", addr).Info("stub ChatFlow API listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("serve: %v", err)
	}
}

// seed adds an administrator, a regular user and a shared channel.
func seed(srv *stub.Server, log *logrus.Entry) {
	admin, err := srv.AddUser("Ada", "Admin", "admin@chatflow.local", "admin123", "ADMIN")
	if err != nil {
		log.Fatalf("seed admin: %v", err)
	}
	user, err := srv.AddUser("Bob", "User", "bob@chatflow.local", "bob123", "USER")
	if err != nil {
		log.Fatalf("seed user: %v", err)
	}
	general := srv.AddChannel("general", admin, user)
	if err := srv.Post(general, admin, "Welcome to ChatFlow"); err != nil {
		log.Fatalf("seed message: %v", err)
	}
	log.WithFields(logrus.Fields{"admin": "admin@chatflow.local", "user": "bob@chatflow.local"}).Info("seeded accounts")
}
