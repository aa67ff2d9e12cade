// Command aggregator is the proof-aggregation service entrypoint: it
// loads configuration, opens the database, wires the reduction worker
// (C5), batch scheduler (C6), and on-chain submitter (C7) against their
// external collaborators, and runs all three until an OS signal
// requests shutdown.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/certen/proof-aggregator/internal/appctx"
	"github.com/certen/proof-aggregator/internal/artifact"
	"github.com/certen/proof-aggregator/internal/batch"
	"github.com/certen/proof-aggregator/internal/chain"
	"github.com/certen/proof-aggregator/internal/config"
	"github.com/certen/proof-aggregator/internal/httpapi"
	"github.com/certen/proof-aggregator/internal/inclusion"
	"github.com/certen/proof-aggregator/internal/metrics"
	"github.com/certen/proof-aggregator/internal/proving"
	"github.com/certen/proof-aggregator/internal/reduction"
	"github.com/certen/proof-aggregator/internal/store"
)

// Operational defaults not covered by the enumerated static-config
// keys; a deployment that needs different values wraps this binary
// rather than templating them into the YAML tier.
const (
	checkInterval       = 30 * time.Second
	gasLimit            = 3_000_000
	retryCount          = 3
	baselinePerProofGas = 250_000
	metricsAddr         = ":9464"
	apiAddr             = ":8090"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	staticPath := flag.String("config", "config.yaml", "path to the static YAML configuration file")
	flag.Parse()

	static, err := config.LoadStatic(*staticPath)
	if err != nil {
		log.Fatalf("load static config: %v", err)
	}
	secrets := config.LoadSecrets()
	if err := secrets.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	dbParams := store.Params{
		URL:          databaseURL(secrets),
		MaxConns:     10,
		MinConns:     2,
		MaxIdleTimeS: 300,
		MaxLifetimeS: 3600,
	}
	db, err := store.NewClient(dbParams)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.MigrateUp(ctx); err != nil {
		log.Fatalf("run migrations: %v", err)
	}

	app := appctx.New(db, static.PrBatchMaxCycleCount)

	artifactStore, err := artifact.New(static.StorageFolderPath)
	if err != nil {
		log.Fatalf("open artifact store: %v", err)
	}

	ethClient, err := ethclient.Dial(secrets.RPCEndpoint)
	if err != nil {
		log.Fatalf("dial ethereum RPC: %v", err)
	}
	privateKey, err := crypto.HexToECDSA(secrets.PrivateKey)
	if err != nil {
		log.Fatalf("parse private key: %v", err)
	}
	contractAddr := common.HexToAddress(secrets.QuantumContractAddr)

	metricsRegistry := metrics.New()

	reductionWorker := reduction.New(
		app,
		proving.NewHTTPReductionBackend(envOrDefault("REDUCTION_PROVER_URL", "http://localhost:8080")),
		artifactStore,
		reduction.Params{
			SleepInterval:        static.WorkerSleep(),
			ParallelSessionLimit: static.ParallelBonsaiSessionLimit,
			PerBatchMaxCycles:    static.PrBatchMaxCycleCount,
		},
	)
	reductionWorker.Metrics = metricsRegistry

	wrapper := batch.NewDefaultWrapper()
	if err := wrapper.Setup(); err != nil {
		log.Fatalf("set up final wrapper circuit: %v", err)
	}

	scheduler := batch.NewScheduler(
		app,
		artifactStore,
		proving.NewHTTPLaneProver(envOrDefault("LANE_R_PROVER_URL", "http://localhost:8081")),
		proving.NewHTTPLaneProver(envOrDefault("LANE_S_PROVER_URL", "http://localhost:8082")),
		proving.NewFileEmptyLaneLoader(artifactStore, "lane_s_empty.json"),
		wrapper,
		batch.Params{
			CheckInterval:       checkInterval,
			BatchSize:           static.BatchSize,
			AggregationWaitTime: static.AggregationWait(),
		},
	)
	scheduler.Metrics = metricsRegistry

	submitter := chain.NewSubmitter(
		app,
		chain.NewEVMBackend(ethClient, secrets.ChainID, contractAddr, privateKey),
		chain.NewEVMPriceOracle(ethClient, ethUSDFetcher(secrets.EthPriceRPC)),
		artifactStore,
		chain.Params{
			CheckInterval:       checkInterval,
			BatchSize:           static.BatchSize,
			GasLimit:            gasLimit,
			RetryCount:          retryCount,
			BaselinePerProofGas: baselinePerProofGas,
		},
	)
	submitter.Metrics = metricsRegistry

	inclusionService := inclusion.New(app, artifactStore)
	inclusionHandlers := httpapi.NewInclusionHandlers(inclusionService, app.SubLogger("inclusion-api"))

	reductionWorker.Start(ctx)
	scheduler.Start(ctx)
	submitter.Start(ctx)

	metricsServer := &http.Server{Addr: metricsAddr, Handler: metricsMux(metricsRegistry)}
	go func() {
		log.Printf("metrics listening on %s", metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server: %v", err)
		}
	}()

	apiServer := &http.Server{Addr: apiAddr, Handler: apiMux(inclusionHandlers)}
	go func() {
		log.Printf("tenant API listening on %s", apiAddr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("tenant API server: %v", err)
		}
	}()

	log.Println("aggregator started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	_ = apiServer.Shutdown(shutdownCtx)

	reductionWorker.Stop()
	scheduler.Stop()
	submitter.Stop()

	log.Println("aggregator stopped")
}

func metricsMux(reg *metrics.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	return mux
}

func apiMux(inclusionHandlers *httpapi.InclusionHandlers) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/proofs/", inclusionHandlers.HandleGetInclusionProof)
	return mux
}

func databaseURL(secrets *config.Secrets) string {
	host := envOrDefault("DB_HOST", "localhost")
	port := envOrDefault("DB_PORT", "5432")
	return "postgres://" + secrets.DBUser + ":" + secrets.DBPassword + "@" + host + ":" + port + "/" + secrets.DBName + "?sslmode=disable"
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// ethUSDFetcher queries a price-feed endpoint expected to return a bare
// JSON number, the simplest contract a deployment's price API can
// satisfy; anything richer is the deployment's own adapter to write.
func ethUSDFetcher(rpcURL string) func(ctx context.Context) (float64, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	return func(ctx context.Context) (float64, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rpcURL, nil)
		if err != nil {
			return 0, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		var price float64
		if err := json.NewDecoder(resp.Body).Decode(&price); err != nil {
			return 0, err
		}
		return price, nil
	}
}
