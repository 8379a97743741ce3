// Package main is the entry point for the signal execution router.
//
// The engine:
//  1. Loads configuration and the accounts credential blob.
//  2. Wires the token manager, broker adapter, and signal executor.
//  3. Starts the HTTP surface (webhook intake, order status, admin toggles).
//  4. Waits for SIGINT/SIGTERM and shuts down gracefully.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/signalrouter/kisrouter/internal/auditlog"
	"github.com/signalrouter/kisrouter/internal/broker"
	"github.com/signalrouter/kisrouter/internal/config"
	"github.com/signalrouter/kisrouter/internal/credstore"
	"github.com/signalrouter/kisrouter/internal/executor"
	"github.com/signalrouter/kisrouter/internal/httpapi"
	"github.com/signalrouter/kisrouter/internal/tokenmgr"
)

func main() {
	configPath := flag.String("config", "config/config.json", "path to configuration file")
	flag.Parse()

	logger := log.New(os.Stdout, "[engine] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Printf("config loaded: http_port=%d", cfg.HTTPPort)

	accountsJSON, err := config.LoadAccountsJSON(cfg)
	if err != nil {
		logger.Fatalf("failed to load accounts blob: %v", err)
	}

	store, err := credstore.New(accountsJSON, log.New(os.Stdout, "[credstore] ", log.LstdFlags))
	if err != nil {
		logger.Fatalf("failed to parse accounts blob: %v", err)
	}
	logger.Printf("loaded %d accounts", len(store.ListIDs()))

	strategies := loadStrategyLookup(store, logger)

	tokens := tokenmgr.New(log.New(os.Stdout, "[tokenmgr] ", log.LstdFlags))
	brokerAdapter := broker.New(tokens, log.New(os.Stdout, "[broker] ", log.LstdFlags))

	var audit executor.AuditSink
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		auditStore, auditErr := auditlog.New(ctx, cfg.DatabaseURL, log.New(os.Stdout, "[auditlog] ", log.LstdFlags))
		cancel()
		if auditErr != nil {
			logger.Printf("WARNING: audit log database not available: %v — audit logging disabled", auditErr)
		} else {
			audit = auditStore
			defer auditStore.Close()
			logger.Println("audit log connected")
		}
	} else {
		logger.Println("no database_url configured — audit logging disabled")
	}

	exec := executor.New(store, brokerAdapter, strategies, audit, log.New(os.Stdout, "[executor] ", log.LstdFlags))

	server := httpapi.New(httpapi.Config{Port: cfg.HTTPPort}, exec, store, brokerAdapter, log.New(os.Stdout, "[httpapi] ", log.LstdFlags))
	if err := server.Start(); err != nil {
		logger.Fatalf("failed to start http server: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	logger.Println("shutdown signal received")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("WARNING: server shutdown did not complete cleanly: %v", err)
	}
}

// loadStrategyLookup builds a StrategyLookup closure over the strategy
// metadata embedded (as opaque JSON) in each account record. Parsing is
// done once up front, at startup, rather than per-signal.
func loadStrategyLookup(store *credstore.Store, logger *log.Logger) executor.StrategyLookup {
	byAccount := make(map[string][]executor.StrategyConfig)

	for _, id := range store.ListIDs() {
		acct, err := store.LoadByID(id)
		if err != nil || len(acct.Strategies) == 0 {
			continue
		}
		var strategies []executor.StrategyConfig
		if err := json.Unmarshal(acct.Strategies, &strategies); err != nil {
			logger.Printf("[engine] account %q: malformed strategies metadata, ignoring: %v", id, err)
			continue
		}
		byAccount[id] = strategies
	}

	return func(accountID string) []executor.StrategyConfig {
		return byAccount[accountID]
	}
}
