// Command zoned runs a single sovereign-zone compliance orchestration
// node: the envelope pipeline wired to the sovereignty enforcer, the
// policy engine, the content-addressed store, and an L1 anchor target,
// exposed over the minimal HTTP surface in pkg/httpapi.
package main

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zonetrust/compliance-core/pkg/anchor"
	"github.com/zonetrust/compliance-core/pkg/auditlog"
	"github.com/zonetrust/compliance-core/pkg/canon"
	"github.com/zonetrust/compliance-core/pkg/config"
	"github.com/zonetrust/compliance-core/pkg/envelope"
	"github.com/zonetrust/compliance-core/pkg/ethereum"
	"github.com/zonetrust/compliance-core/pkg/httpapi"
	"github.com/zonetrust/compliance-core/pkg/policyengine"
	"github.com/zonetrust/compliance-core/pkg/ratelimit"
	"github.com/zonetrust/compliance-core/pkg/sovereignty"
	"github.com/zonetrust/compliance-core/pkg/store"
	"github.com/zonetrust/compliance-core/pkg/tensor"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("starting zoned")

	var showHelp = flag.Bool("help", false, "show help message")
	flag.Parse()
	if *showHelp {
		printHelp()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration:", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration:", err)
	}

	signingKey, err := loadSigningKey(cfg.ZoneSigningKeyPath)
	if err != nil {
		log.Fatalf("failed to load zone signing key: %v", err)
	}

	enforcer := sovereignty.NewEnforcer()
	jurisdictionProfiles := map[string]tensor.Jurisdiction{}

	audit := auditlog.New(cfg.AuditCapacity)
	engine := policyengine.New(audit)

	if zoneCfg, err := config.LoadZoneConfig(cfg.JurisdictionConfigPath); err != nil {
		log.Printf("warning: jurisdiction config %s not loaded: %v (running with no jurisdictions configured)", cfg.JurisdictionConfigPath, err)
	} else {
		profiles, err := zoneCfg.ApplyTo(enforcer)
		if err != nil {
			log.Fatalf("failed to apply zone config: %v", err)
		}
		jurisdictionProfiles = profiles

		engine.LoadPolicies(zoneCfg.Policies())
		log.Printf("loaded %d jurisdictions and policy engine rules from %s", len(profiles), cfg.JurisdictionConfigPath)
	}

	if cfg.AnchorMode == "evm" {
		rpcClient, err := ethereum.NewClient(cfg.EthereumRPCURL, cfg.EthChainID)
		if err != nil {
			log.Fatalf("failed to dial EVM RPC endpoint: %v", err)
		}
		healthCtx, healthCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := rpcClient.Health(healthCtx); err != nil {
			log.Fatalf("EVM RPC endpoint unreachable: %v", err)
		}
		head, err := rpcClient.LatestBlockNumber(healthCtx)
		healthCancel()
		if err != nil {
			log.Printf("warning: failed to read EVM chain head: %v", err)
		} else {
			log.Printf("EVM RPC endpoint reachable: chain_id=%s head=%d", rpcClient.ChainID(), head)
		}
	}

	anchorTarget, err := buildAnchorTarget(cfg)
	if err != nil {
		log.Fatalf("failed to build anchor target: %v", err)
	}
	log.Printf("anchor target ready: chain_id=%s", anchorTarget.ChainID())

	startupBytes, err := canon.New(cfg.ZoneDID + "/startup/" + time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		log.Fatalf("failed to canonicalize startup commitment: %v", err)
	}
	startupDigest := canon.Sha256Digest(startupBytes)
	if receipt, err := anchorTarget.Anchor(context.Background(), startupDigest); err != nil {
		log.Printf("warning: startup anchor call failed: %v", err)
	} else {
		log.Printf("startup commitment anchored: tx=%s status=%s", receipt.TxID, receipt.Status)
	}

	env := &envelope.Envelope{
		Sovereignty:            enforcer,
		ZoneDID:                cfg.ZoneDID,
		ZoneVerificationMethod: cfg.ZoneVerificationMethod,
		ZoneSigningKey:         signingKey,
		Attestations:           envelope.NewAttestationStore(),
		Audit:                  audit,
		Policy:                 engine,
	}

	var entities store.Entities = store.NewMemEntities()
	if cfg.DatabaseURL != "" {
		db, err := store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			if cfg.DatabaseRequired {
				log.Fatalf("database connection required but failed: %v", err)
			}
			log.Printf("warning: database connection failed, falling back to in-memory entity store: %v", err)
		} else {
			log.Printf("connected to durable entity store")
			entities = store.NewPostgresEntities(db)
		}
	}

	limiter := ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.RateLimitMaxAge)
	defer limiter.Close()

	metrics := httpapi.NewMetrics()

	srv := &httpapi.Server{
		Envelope: env,
		Entities: entities,
		Tensors: func(jurisdictionID string) *tensor.Tensor {
			profile, ok := jurisdictionProfiles[jurisdictionID]
			if !ok {
				return nil
			}
			return tensor.New(profile, nil)
		},
		RateLimit: limiter,
		Metrics:   metrics,
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.NewMux(),
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metricsMux,
	}

	go func() {
		log.Printf("zoned API listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start HTTP server:", err)
		}
	}()

	go func() {
		log.Printf("zoned metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("shutting down zoned...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}
}

// loadSigningKey reads a zone signing key file. The file may hold a raw
// 32-byte seed or its hex encoding, with or without a trailing newline.
func loadSigningKey(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	seed := bytes.TrimRight(raw, "\r\n ")
	if len(seed) != ed25519.SeedSize {
		if decoded, decErr := hex.DecodeString(string(seed)); decErr == nil && len(decoded) == ed25519.SeedSize {
			seed = decoded
		}
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

func buildAnchorTarget(cfg *config.Config) (anchor.Target, error) {
	switch cfg.AnchorMode {
	case "evm":
		return anchor.NewEVM(anchor.EVMConfig{
			RPCURL:             cfg.EthereumRPCURL,
			ChainIDNum:         cfg.EthChainID,
			ContractAddress:    cfg.AnchorContractAddress,
			PrivateKeyHex:      cfg.AnchorPrivateKeyHex,
			GasLimit:           cfg.AnchorGasLimit,
			ConfirmationBlocks: cfg.AnchorConfirmationBlocks,
			CallTimeout:        cfg.AnchorCallTimeout,
		}, log.New(log.Writer(), "[anchor] ", log.LstdFlags))
	default:
		return anchor.NewMock("zone-local"), nil
	}
}

func printHelp() {
	log.Println("zoned: sovereign-zone compliance orchestration node")
	log.Println("environment variables and their defaults are defined in pkg/config/config.go")
}
