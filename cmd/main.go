package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"chatflow/client/internal/api"
	"chatflow/client/internal/chat"
	"chatflow/client/internal/config"
	"chatflow/client/internal/graphql"
	"chatflow/client/internal/localization"
	"chatflow/client/internal/logging"
	"chatflow/client/internal/notify"
	"chatflow/client/internal/session"
	"chatflow/client/internal/storage"
	"chatflow/client/internal/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "chatflow:", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotenv(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: no .env file loaded")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flag.StringVar(&cfg.HTTPURL, "url", cfg.HTTPURL, "GraphQL HTTP endpoint")
	wsURL := flag.String("ws", "", "GraphQL WebSocket endpoint (derived from -url when empty)")
	flag.StringVar(&cfg.Profile, "profile", cfg.Profile, "token profile name")
	flag.StringVar(&cfg.Language, "lang", cfg.Language, "UI language (en, uk)")
	flag.StringVar(&cfg.LogFile, "log", cfg.LogFile, "log file path")
	flag.Parse()
	switch {
	case *wsURL != "":
		cfg.WSURL = *wsURL
	case isFlagSet("url"):
		cfg.WSURL = config.DeriveWSURL(cfg.HTTPURL)
	}

	logPath := cfg.LogFile
	if logPath == "" {
		logPath = filepath.Join(os.TempDir(), "chatflow-client.log")
	}
	logger, logFile, err := logging.NewFile(cfg.LogLevel, logPath)
	if err != nil {
		return err
	}
	defer logFile.Close()
	log := logging.Component(logger, "main")
	log.WithField("endpoint", cfg.HTTPURL).Info("starting ChatFlow client")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closer, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open token store: %w", err)
	}
	defer closer.Close()

	provider := session.NewProvider(store, logging.Component(logger, "session"))
	if err := provider.Restore(ctx); err != nil {
		log.WithError(err).Warn("could not restore session")
	}

	httpClient := graphql.NewClient(cfg.HTTPURL, store,
		graphql.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		graphql.WithLogger(logging.Component(logger, "graphql")),
		graphql.WithSessionExpired(provider.Expire),
	)
	subscriber := graphql.NewSubscriber(cfg.WSURL, store,
		graphql.WithSubscriberLogger(logging.Component(logger, "subscriptions")),
		graphql.WithAckTimeout(config.SubscriptionAckTimeout),
	)
	transport := graphql.NewTransport(httpClient, subscriber)
	client := api.New(transport)

	vm := chat.New(client, provider,
		chat.WithLogger(logging.Component(logger, "chat")),
		chat.WithPollInterval(cfg.PollInterval),
		chat.WithRooms(client),
	)
	center := notify.NewCenter(client, logging.Component(logger, "notify"))

	app := ui.New(ui.Deps{
		API:       client,
		Transport: transport,
		Session:   provider,
		Chat:      vm,
		Notify:    center,
		Localizer: localization.Default(),
		Lang:      cfg.Language,
		Log:       logging.Component(logger, "ui"),
	})
	if err := app.Run(ctx); err != nil {
		return err
	}
	log.Info("bye")
	return nil
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
