// Copyright (C) 2025 PitCrew AI (eng@pitcrew.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command insight starts the PitCrew query insight server.
//
// The insight server classifies incoming sales-assistant queries:
// intent routing, meeting reference detection, follow-up detection,
// and answer contract selection.
//
// Usage:
//
//	go run ./cmd/insight
//	go run ./cmd/insight -port 9090
//	go run ./cmd/insight -rules /etc/insight/rules.yaml
//
// With an LLM fallback:
//
//	OPENAI_API_KEY=sk-... go run ./cmd/insight
//
// Example requests:
//
//	# Health check
//	curl http://localhost:8080/v1/insight/health
//
//	# Classify a query
//	curl -X POST http://localhost:8080/v1/insight/classify \
//	  -H "Content-Type: application/json" \
//	  -d '{"message": "What did we discuss in the last meeting with Acme?"}'
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/pitcrewai/meetinsight/services/insight"
	"github.com/pitcrewai/meetinsight/services/insight/classify"
	"github.com/pitcrewai/meetinsight/services/insight/config"
	"github.com/pitcrewai/meetinsight/services/insight/entity"
	"github.com/pitcrewai/meetinsight/services/insight/providers"
	badgerstore "github.com/pitcrewai/meetinsight/services/insight/storage/badger"
)

func main() {
	port := flag.Int("port", 8080, "Port to listen on")
	debug := flag.Bool("debug", false, "Enable debug mode")
	rulesPath := flag.String("rules", "", "Optional rules YAML file to load and hot-reload (default: embedded rules)")
	flag.Parse()

	if *debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// W3C TraceContext propagation from incoming headers through handlers.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	ctx := context.Background()
	rs, err := loadRules(ctx, *rulesPath)
	if err != nil {
		slog.Error("Failed to load rule set", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Entity snapshot BadgerDB. Graceful degradation: if unavailable,
	// the snapshot provider runs in-memory-only.
	var snapshotStore entity.SnapshotStore
	cacheDir := os.Getenv("ENTITY_CACHE_DIR")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cacheDir = filepath.Join(home, ".pitcrew", "cache", "entities")
		}
	}
	var entityDB *badgerstore.DB
	if cacheDir != "" {
		cfg := badgerstore.DefaultConfig()
		cfg.Path = cacheDir
		db, err := badgerstore.OpenDB(cfg)
		if err != nil {
			slog.Warn("Entity cache BadgerDB unavailable, snapshot persistence disabled",
				slog.String("path", cacheDir),
				slog.String("error", err.Error()),
			)
		} else {
			entityDB = db
			snapshotStore = entity.NewBadgerSnapshotStore(db, 0, slog.Default())
			slog.Info("Entity cache BadgerDB opened", slog.String("path", cacheDir))
		}
	}

	companies := setupCompanySource(snapshotStore)
	chat := setupChatClient()

	svcCfg := insight.LoadServiceConfig(slog.Default())
	svc, err := insight.NewService(svcCfg, rs, chat, companies, slog.Default())
	if err != nil {
		slog.Error("Failed to build insight service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Hot reload: watch the rules file and swap the pipeline on change.
	var cancelWatch context.CancelFunc
	if *rulesPath != "" {
		watcher, err := config.NewRulesWatcher(*rulesPath, svc.Reload, slog.Default())
		if err != nil {
			slog.Warn("Rules watcher unavailable, hot reload disabled",
				slog.String("path", *rulesPath),
				slog.String("error", err.Error()),
			)
		} else {
			var watchCtx context.Context
			watchCtx, cancelWatch = context.WithCancel(ctx)
			go watcher.Run(watchCtx)
		}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("pitcrew-insight"))
	if *debug {
		router.Use(gin.Logger())
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	insight.RegisterRoutes(v1, insight.NewHandlers(svc))

	printBanner(*port, chat != nil, rs.Version)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		slog.Info("Shutting down insight server")
		if cancelWatch != nil {
			cancelWatch()
		}
		if entityDB != nil {
			if err := entityDB.Close(); err != nil {
				slog.Warn("Failed to close entity cache BadgerDB", slog.String("error", err.Error()))
			}
		}
		os.Exit(0)
	}()

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Starting insight server", slog.String("address", addr))
	if err := router.Run(addr); err != nil {
		slog.Error("Failed to start server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// loadRules loads the rule set from a file, or the embedded defaults.
func loadRules(ctx context.Context, path string) (*config.RuleSet, error) {
	if path == "" {
		return config.GetRuleSet(ctx)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file %s: %w", path, err)
	}
	return config.LoadRuleSet(ctx, data)
}

// setupCompanySource wires the entity store lister behind the snapshot
// provider. Without ENTITY_STORE_URL the server runs with an empty
// company set, which only disables the entity stage.
func setupCompanySource(store entity.SnapshotStore) classify.CompanySource {
	var lister entity.CompanyLister
	if base := os.Getenv("ENTITY_STORE_URL"); base != "" {
		lister = entity.NewHTTPLister(base)
		slog.Info("Entity store configured", slog.String("url", base))
	} else {
		lister = entity.StaticLister(nil)
		slog.Warn("ENTITY_STORE_URL not set, entity detection runs with an empty company set")
	}
	return entity.NewSnapshotProvider(lister, store, 0, slog.Default())
}

// setupChatClient builds the LLM client, or nil when no key is set.
// Without it the pipeline runs deterministic-only.
func setupChatClient() providers.ChatClient {
	chat, err := providers.NewOpenAIChatClient()
	if err != nil {
		slog.Warn("LLM client unavailable, semantic stages disabled",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return chat
}

// printBanner prints the startup banner.
func printBanner(port int, llmEnabled bool, rulesVersion string) {
	fmt.Printf(`
  PitCrew Insight Server
  ----------------------
  Port:          %d
  Rules version: %s
  LLM fallback:  %v

  POST /v1/insight/classify
  POST /v1/insight/meetingref
  POST /v1/insight/followup
  POST /v1/insight/contract/coverage
  GET  /v1/insight/health
  GET  /metrics

`, port, rulesVersion, llmEnabled)
}
