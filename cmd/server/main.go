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

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"researchllm/backend/internal/config"
	"researchllm/backend/internal/db"
	"researchllm/backend/internal/httpapi"
	"researchllm/backend/internal/identity"
	"researchllm/backend/internal/llm"
	"researchllm/backend/internal/security"
	"researchllm/backend/internal/telemetry/otel"
	"researchllm/backend/internal/usage"
	usageproducer "researchllm/backend/internal/usage/producer"
	usagerepo "researchllm/backend/internal/usage/repository"
	userrepo "researchllm/backend/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "researchllm-backend", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	codec, err := security.NewTokenCodec(cfg.SecretKey, cfg.TokenIssuer)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	users := userrepo.NewPostgresRepository(conn)
	provider := identity.NewGoTrueClient(cfg.AuthBaseURL, cfg.AuthAnonKey, cfg.AuthServiceKey)
	auth := identity.NewAuthService(provider, users, codec, cfg.AccessTTL())
	resolver := identity.NewResolver(codec, users)

	usageStore := usagerepo.NewPostgresRepository(conn)
	kafkaProducer := usageproducer.NewKafkaProducer(cfg.UsageKafkaBrokersList(), cfg.UsageKafkaTopic)
	var emitters []usage.Emitter
	if kafkaProducer != nil {
		defer kafkaProducer.Close()
		emitters = append(emitters, kafkaProducer)
	}
	if cfg.OTLPEndpoint != "" {
		emitters = append(emitters, otel.NewUsageEmitter(providers.LoggerProvider))
	}
	recorder := usage.NewRecorder(usageStore, emitters...)
	aggregator := usage.NewAggregator(usageStore)

	registry := llm.NewRegistry()
	dispatcher := llm.NewDispatcher(recorder)

	handler := httpapi.NewHandler(auth, resolver, registry, dispatcher, aggregator, conn)
	var root http.Handler = handler.Routes()
	root = httpapi.CORSMiddleware(cfg.CORSOriginsList(), root)
	root = httpapi.LoggingMiddleware(root)
	root = otelhttp.NewHandler(root, "http.server")

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}

	// Give in-flight async usage writes time to land before tearing down exporters.
	time.Sleep(usage.DrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
