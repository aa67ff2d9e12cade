package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadStaticParsesYAMLKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := `
storage_folder_path: /data/storage
user_data_path: /data/users
proof_path: /data/proofs
public_inputs_path: /data/pis
reduced_proof_path: /data/reduced_proofs
reduced_pis_path: /data/reduced_pis
supperproof_path: /data/superproofs
aggregated_circuit_data: /data/agg_circuit
verification_contract_address: "0xabc"
batch_size: 20
worker_sleep_secs: 30
aggregation_wait_time: 600
parallel_bonsai_session_limit: 4
pr_batch_max_cycle_count: 1000000
`
	if err := os.WriteFile(path, []byte(yamlBody), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadStatic(path)
	if err != nil {
		t.Fatalf("LoadStatic: %v", err)
	}
	if cfg.BatchSize != 20 {
		t.Errorf("expected batch_size 20, got %d", cfg.BatchSize)
	}
	if cfg.VerificationContractAddr != "0xabc" {
		t.Errorf("expected contract address 0xabc, got %s", cfg.VerificationContractAddr)
	}
	if cfg.AggregationWait().Seconds() != 600 {
		t.Errorf("expected 600s aggregation wait, got %v", cfg.AggregationWait())
	}
}

func TestLoadStaticMissingFileErrors(t *testing.T) {
	if _, err := LoadStatic("/no/such/file.yaml"); err == nil {
		t.Error("expected an error for a missing config file")
	}
}

func TestSecretsValidateReportsAllMissingFields(t *testing.T) {
	s := &Secrets{RunMode: "test"}
	err := s.Validate()
	if err == nil {
		t.Fatal("expected validation error for empty secrets")
	}
	for _, want := range []string{"DB_USER", "DB_NAME", "PRIVATE_KEY", "RPC_ENDPOINT", "CHAIN_ID", "QUANTUM_CONTRACT_ADDRESS"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected validation error to mention %s", want)
		}
	}
}

func TestSecretsValidateRejectsUnknownRunMode(t *testing.T) {
	s := &Secrets{
		DBUser: "u", DBName: "n", PrivateKey: "k", RPCEndpoint: "r",
		ChainID: 1, QuantumContractAddr: "0x1", RunMode: "staging",
	}
	if err := s.Validate(); err == nil {
		t.Error("expected an error for an unrecognized RUN_MODE")
	}
}
