// Package config implements the two-tier configuration loader (C9): a
// YAML file for the static, non-secret operational settings (paths,
// batch sizes, wait times) and environment variables for credentials
// and per-deployment endpoints, matching spec.md §6's enumerated
// configuration keys and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StaticConfig is the YAML-loaded tier: storage layout, batch sizing,
// and loop cadences. Field names and yaml tags mirror the original
// service's ConfigData key set exactly.
type StaticConfig struct {
	StorageFolderPath          string `yaml:"storage_folder_path"`
	UserDataPath               string `yaml:"user_data_path"`
	ProofPath                  string `yaml:"proof_path"`
	PublicInputsPath           string `yaml:"public_inputs_path"`
	ReducedProofPath           string `yaml:"reduced_proof_path"`
	ReducedPisPath             string `yaml:"reduced_pis_path"`
	SupperproofPath            string `yaml:"supperproof_path"`
	AggregatedCircuitData      string `yaml:"aggregated_circuit_data"`
	VerificationContractAddr   string `yaml:"verification_contract_address"`
	BatchSize                  int    `yaml:"batch_size"`
	WorkerSleepSecs            int    `yaml:"worker_sleep_secs"`
	AggregationWaitTime        int    `yaml:"aggregation_wait_time"`
	ParallelBonsaiSessionLimit int    `yaml:"parallel_bonsai_session_limit"`
	PrBatchMaxCycleCount       int64  `yaml:"pr_batch_max_cycle_count"`
}

// LoadStatic reads and parses the YAML static tier from path.
func LoadStatic(path string) (*StaticConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read static config %s: %w", path, err)
	}
	cfg := &StaticConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse static config %s: %w", path, err)
	}
	return cfg, nil
}

// Secrets is the environment-variable tier: database credentials and
// chain connection details, per spec.md §6's enumerated environment
// variables.
type Secrets struct {
	DBUser            string
	DBPassword        string
	DBName            string
	PrivateKey        string
	RPCEndpoint       string
	ChainID           int64
	QuantumContractAddr string
	GasCostRPC        string
	GasCostAPIKey     string
	EthPriceRPC       string
	RunMode           string // "test" or "prod"
}

// LoadSecrets reads the environment-variable tier. This tier carries
// no defaults for credentials: an empty value must be
// caught by Validate, not silently substituted.
func LoadSecrets() *Secrets {
	return &Secrets{
		DBUser:              getEnv("DB_USER", ""),
		DBPassword:          getEnv("DB_PASSWORD", ""),
		DBName:              getEnv("DB_NAME", ""),
		PrivateKey:          getEnv("PRIVATE_KEY", ""),
		RPCEndpoint:         getEnv("RPC_ENDPOINT", ""),
		ChainID:             getEnvInt64("CHAIN_ID", 0),
		QuantumContractAddr: getEnv("QUANTUM_CONTRACT_ADDRESS", ""),
		GasCostRPC:          getEnv("GAS_COST_RPC", ""),
		GasCostAPIKey:       getEnv("GAS_COST_API_KEY", ""),
		EthPriceRPC:         getEnv("ETH_PRICE_RPC", ""),
		RunMode:             getEnv("RUN_MODE", "test"),
	}
}

// Validate aggregates every missing-required-value error into one
// message rather than failing on the first, matching the teacher's
// Validate() style.
func (s *Secrets) Validate() error {
	var errs []string
	if s.DBUser == "" {
		errs = append(errs, "DB_USER is required but not set")
	}
	if s.DBName == "" {
		errs = append(errs, "DB_NAME is required but not set")
	}
	if s.PrivateKey == "" {
		errs = append(errs, "PRIVATE_KEY is required but not set")
	}
	if s.RPCEndpoint == "" {
		errs = append(errs, "RPC_ENDPOINT is required but not set")
	}
	if s.ChainID == 0 {
		errs = append(errs, "CHAIN_ID is required but not set")
	}
	if s.QuantumContractAddr == "" {
		errs = append(errs, "QUANTUM_CONTRACT_ADDRESS is required but not set")
	}
	if s.RunMode != "test" && s.RunMode != "prod" {
		errs = append(errs, fmt.Sprintf("RUN_MODE must be \"test\" or \"prod\", got %q", s.RunMode))
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// WorkerSleep returns the reduction worker's poll interval as a Duration.
func (c *StaticConfig) WorkerSleep() time.Duration {
	return time.Duration(c.WorkerSleepSecs) * time.Second
}

// AggregationWait returns the batch scheduler's wait-time gate as a
// Duration.
func (c *StaticConfig) AggregationWait() time.Duration {
	return time.Duration(c.AggregationWaitTime) * time.Second
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}
