package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"storyloom/internal/servicetoken"
	"storyloom/internal/usertoken"
	"storyloom/internal/util"
	"storyloom/pkg/store"
	"storyloom/services/billing/internal/app"
	"storyloom/services/billing/internal/config"
	"storyloom/services/billing/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}
	util.InitLogger(cfg.LogLevel)

	tokenVerifier, err := usertoken.NewVerifier(usertoken.Config{
		JWKSURL:    cfg.AuthJWKSURL,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
	})
	if err != nil {
		util.Fatal("failed to init jwks verifier", "err", err)
	}
	serviceVerifier, err := servicetoken.NewVerifier(servicetoken.VerifierOptions{
		PublicKeyPath:  cfg.InternalJWTPublicKeyPath,
		Audience:       "billing",
		AllowedIssuers: cfg.InternalAllowedIssuers,
	})
	if err != nil {
		util.Fatal("failed to init service token verifier", "err", err)
	}

	ledgerStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		util.Fatal("failed to init store", "err", err)
	}

	var notifier app.Notifier = app.LogNotifier{}
	if cfg.AMQPURL != "" {
		amqpNotifier, err := app.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			util.Fatal("failed to init amqp notifier", "err", err)
		}
		notifier = amqpNotifier
	}

	ledger, err := app.New(app.Config{
		Store:    ledgerStore,
		Catalog:  app.DefaultCatalog(),
		Notifier: notifier,
	})
	if err != nil {
		util.Fatal("failed to init ledger", "err", err)
	}

	httpServer := server.New(server.Config{
		Ledger:          ledger,
		TokenVerifier:   tokenVerifier,
		ServiceVerifier: serviceVerifier,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("billing server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "err", err)
	}
}
