// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"

	"github.com/nightcord/nako-gateway/handlers"
	"github.com/nightcord/nako-gateway/llm"
	"github.com/nightcord/nako-gateway/middleware"
	"github.com/nightcord/nako-gateway/observability"
	"github.com/nightcord/nako-gateway/personas"
	"github.com/nightcord/nako-gateway/pkg/logging"
	"github.com/nightcord/nako-gateway/routes"
	"github.com/nightcord/nako-gateway/sticker"
	"github.com/nightcord/nako-gateway/usage"
)

const serviceName = "nako-gateway"

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "nako-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// readSecret reads a config value from the environment, falling back to
// a mounted secret file.
func readSecret(envVar, secretPath string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	if content, err := os.ReadFile(secretPath); err == nil {
		slog.Info("Read secret from mounted file", "env", envVar, "path", secretPath)
		return strings.TrimSpace(string(content))
	}
	return ""
}

// buildWeaviateClient connects the sticker index, or returns nil when the
// URL is unset or invalid so the gateway runs without augmentation.
func buildWeaviateClient() *weaviate.Client {
	weaviateURL := strings.Trim(os.Getenv("WEAVIATE_SERVICE_URL"), "\"' ")
	if weaviateURL == "" || !strings.Contains(weaviateURL, "http") {
		slog.Info("WEAVIATE_SERVICE_URL not set or empty. Running without sticker augmentation.")
		return nil
	}

	parsedURL, err := url.Parse(weaviateURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		slog.Warn("WEAVIATE_SERVICE_URL is invalid. Running without sticker augmentation.",
			"url", weaviateURL, "error", err)
		return nil
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	})
	if err != nil {
		slog.Error("Failed to create Weaviate client", "error", err)
		return nil
	}
	return client
}

// buildProviders constructs one model provider per registered persona.
// A persona whose backend cannot be configured is skipped with a log
// line; requests selecting it get an internal error.
func buildProviders() map[string]llm.ModelProvider {
	runnerURL := os.Getenv("RUNNER_SERVICE_URL")
	openaiEndpoint := os.Getenv("OPENAI_ENDPOINT")
	openaiKey := readSecret("OPENAI_API_KEY", "/run/secrets/openai_api_key")

	providers := make(map[string]llm.ModelProvider)
	for _, name := range personas.Names() {
		persona, err := personas.Get(name)
		if err != nil {
			continue
		}

		// History turns are authored under the selector, not the display
		// name, so the selector is what the provider matches against.
		var provider llm.ModelProvider
		switch persona.Provider {
		case personas.ProviderRunner:
			provider, err = llm.NewRunnerProvider(runnerURL, persona.Model, name, persona.Sampling)
		case personas.ProviderOpenAI:
			provider, err = llm.NewOpenAIProvider(openaiEndpoint, openaiKey, persona.Model, name, persona.Sampling)
		default:
			slog.Error("Unknown provider kind for persona", "persona", name, "kind", persona.Provider)
			continue
		}
		if err != nil {
			slog.Warn("Persona backend unavailable", "persona", name, "error", err)
			continue
		}
		providers[name] = provider
		slog.Info("Configured persona backend", "persona", name, "model", persona.Model)
	}
	return providers
}

func main() {
	port := os.Getenv("GATEWAY_PORT")
	if port == "" {
		port = "8787"
	}

	logging.Setup(logging.Config{
		Level:   os.Getenv("LOG_LEVEL"),
		Service: serviceName,
	})

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	metrics := observability.InitMetrics()

	var stickers handlers.StickerService
	if weaviateClient := buildWeaviateClient(); weaviateClient != nil {
		embeddingURL := os.Getenv("EMBEDDING_SERVICE_URL")
		if embeddingURL == "" {
			slog.Warn("EMBEDDING_SERVICE_URL not set. Running without sticker augmentation.")
		} else {
			embedder := sticker.NewEmbeddingClient(embeddingURL)
			stickers = sticker.NewRecommender(weaviateClient, embedder)
			slog.Info("Sticker recommendation enabled", "embedding_url", embeddingURL)
		}
	}

	providers := buildProviders()
	if len(providers) == 0 {
		log.Fatal("FATAL: no persona backend could be configured")
	}

	var reporter usage.Reporter = usage.NopReporter{}
	if influxURL := os.Getenv("INFLUX_URL"); influxURL != "" {
		token := readSecret("INFLUX_TOKEN", "/run/secrets/influx_token")
		reporter = usage.NewInfluxReporter(influxURL, token,
			os.Getenv("INFLUX_ORG"), os.Getenv("INFLUX_BUCKET"))
		slog.Info("Usage reporting enabled", "url", influxURL)
	}
	defer reporter.Close()

	var authProvider middleware.AuthProvider
	if dsn := readSecret("DATABASE_URL", "/run/secrets/database_url"); dsn != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pgAuth, err := middleware.NewPGAuthProvider(ctx, dsn)
		cancel()
		if err != nil {
			log.Fatalf("FATAL: could not connect the auth token store: %v", err)
		}
		defer pgAuth.Close()
		authProvider = pgAuth
		slog.Info("Bearer-token auth enabled")
	} else {
		slog.Info("DATABASE_URL not set. API routes are unauthenticated.")
	}

	defer handlers.PurgeSecureMemory()

	chatHandler := handlers.NewChatHandler(providers, stickers, reporter, metrics)
	recommendHandler := handlers.NewRecommendHandler(stickers, metrics)

	router := gin.Default()
	router.Use(otelgin.Middleware(serviceName))
	routes.SetupRoutes(router, chatHandler, recommendHandler, authProvider)

	slog.Info("Starting the gateway", "port", port, "personas", personas.Names())
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
