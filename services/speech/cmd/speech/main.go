package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"storyloom/internal/ratelimit"
	"storyloom/internal/servicetoken"
	"storyloom/internal/usertoken"
	"storyloom/internal/util"
	"storyloom/pkg/ai"
	"storyloom/pkg/domain"
	"storyloom/pkg/queue"
	"storyloom/pkg/storage"
	"storyloom/pkg/store"
	"storyloom/services/speech/internal/app"
	"storyloom/services/speech/internal/billingclient"
	"storyloom/services/speech/internal/config"
	"storyloom/services/speech/internal/server"
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
	signer, err := servicetoken.NewSigner(servicetoken.SignerOptions{
		PrivateKeyPath: cfg.InternalJWTPrivateKeyPath,
		Issuer:         "speech",
	})
	if err != nil {
		util.Fatal("failed to init service token signer", "err", err)
	}

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		util.Fatal("failed to init store", "err", err)
	}
	renders, err := storage.NewMinioRenderStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		util.Fatal("failed to init render store", "err", err)
	}
	assetQueue, err := queue.NewAssetWriteQueue(queue.AssetQueueConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		Stream:   cfg.AssetStream,
	})
	if err != nil {
		util.Fatal("failed to init asset queue", "err", err)
	}
	assetQueue.Start(context.Background(), 2, func(_ context.Context, asset domain.Asset) error {
		return dataStore.SaveAsset(asset)
	})

	limiter, err := ratelimit.NewRedisFixedWindowLimiter(
		cfg.RedisAddr, cfg.RedisPassword, "speech:ratelimit",
		cfg.RateLimit, time.Duration(cfg.RateWindowSecs)*time.Second)
	if err != nil {
		util.Fatal("failed to init rate limiter", "err", err)
	}

	gemini, err := ai.NewGeminiClient(cfg.GeminiAPIKey)
	if err != nil {
		util.Fatal("failed to init gemini client", "err", err)
	}

	appCore, err := app.New(app.Config{
		Synthesizer: gemini,
		SpeechModel: cfg.SpeechModel,
		RepairModel: cfg.RepairModel,
		Billing:     billingclient.NewClient(cfg.BillingServiceURL, signer),
		Renders:     renders,
		AssetQueue:  assetQueue,
	})
	if err != nil {
		util.Fatal("failed to init app", "err", err)
	}

	httpServer := server.New(server.Config{
		App:           appCore,
		TokenVerifier: tokenVerifier,
		Limiter:       limiter,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("speech server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "err", err)
	}
}
