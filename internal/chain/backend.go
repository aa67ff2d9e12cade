package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ChainBackend sends already-packed calldata to the verifier contract
// with its own nonce/gas-price refresh and retry policy. A concrete
// EVM implementation is provided; tests inject a fake.
type ChainBackend interface {
	SendWithRetry(ctx context.Context, calldata []byte, gasLimit uint64, retryCount int) (txHash string, gasUsed uint64, err error)
}

// PriceOracle supplies the base-fee and eth/usd figures C7's cost
// accounting needs, each retried independently of transaction
// submission per spec.md §4.7.
type PriceOracle interface {
	BaseFeeGwei(ctx context.Context) (float64, error)
	EthPriceUSD(ctx context.Context) (float64, error)
}

// EVMBackend is the concrete ChainBackend, grounded on the teacher's
// SendContractTransactionWithRetry nonce/gas-price-refresh-per-attempt
// loop. Unlike the teacher it adds NO sleep between attempts: spec.md
// §4.7 is explicit that chain-send retries have "no back-off".
type EVMBackend struct {
	client        *ethclient.Client
	chainID       *big.Int
	contractAddr  common.Address
	privateKey    *ecdsa.PrivateKey
	minGasPriceWei *big.Int
}

// NewEVMBackend wires a backend against an already-dialed ethclient.
func NewEVMBackend(client *ethclient.Client, chainID int64, contractAddr common.Address, privateKey *ecdsa.PrivateKey) *EVMBackend {
	return &EVMBackend{
		client:         client,
		chainID:        big.NewInt(chainID),
		contractAddr:   contractAddr,
		privateKey:     privateKey,
		minGasPriceWei: big.NewInt(5 * 1e9), // 5 Gwei floor
	}
}

func (b *EVMBackend) SendWithRetry(ctx context.Context, calldata []byte, gasLimit uint64, retryCount int) (string, uint64, error) {
	publicKeyECDSA := b.privateKey.Public().(*ecdsa.PublicKey)
	fromAddress := crypto.PubkeyToAddress(*publicKeyECDSA)

	var lastErr error
	for attempt := 0; attempt < retryCount; attempt++ {
		nonce, err := b.client.PendingNonceAt(ctx, fromAddress)
		if err != nil {
			lastErr = fmt.Errorf("get nonce: %w", err)
			continue
		}

		gasPrice, err := b.client.SuggestGasPrice(ctx)
		if err != nil {
			lastErr = fmt.Errorf("get gas price: %w", err)
			continue
		}
		if gasPrice.Cmp(b.minGasPriceWei) < 0 {
			gasPrice = new(big.Int).Set(b.minGasPriceWei)
		}
		if attempt > 0 {
			// Escalate 20% per retry: 120%, 140%, ...
			multiplier := big.NewInt(int64(100 + 20*attempt))
			gasPrice = new(big.Int).Div(new(big.Int).Mul(gasPrice, multiplier), big.NewInt(100))
		}

		tx := types.NewTransaction(nonce, b.contractAddr, big.NewInt(0), gasLimit, gasPrice, calldata)
		signedTx, err := types.SignTx(tx, types.NewEIP155Signer(b.chainID), b.privateKey)
		if err != nil {
			return "", 0, fmt.Errorf("chain: sign transaction: %w", err)
		}

		if err := b.client.SendTransaction(ctx, signedTx); err != nil {
			lastErr = fmt.Errorf("send transaction: %w", err)
			continue
		}

		receipt, err := bind.WaitMined(ctx, b.client, signedTx)
		if err != nil {
			lastErr = fmt.Errorf("wait for receipt: %w", err)
			continue
		}
		if receipt.Status != types.ReceiptStatusSuccessful {
			lastErr = fmt.Errorf("transaction reverted: %s", signedTx.Hash().Hex())
			continue
		}

		return signedTx.Hash().Hex(), receipt.GasUsed, nil
	}

	return "", 0, fmt.Errorf("chain: exhausted %d attempts: %w", retryCount, lastErr)
}

// EVMPriceOracle fetches base fee and eth/usd rate via ethclient and an
// injected USD rate function (a price feed contract call or an external
// HTTP rate API, both out of scope for the core per spec.md §1).
type EVMPriceOracle struct {
	client      *ethclient.Client
	ethUSDFetch func(ctx context.Context) (float64, error)
}

func NewEVMPriceOracle(client *ethclient.Client, ethUSDFetch func(ctx context.Context) (float64, error)) *EVMPriceOracle {
	return &EVMPriceOracle{client: client, ethUSDFetch: ethUSDFetch}
}

func (o *EVMPriceOracle) BaseFeeGwei(ctx context.Context) (float64, error) {
	header, err := o.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("chain: fetch latest header: %w", err)
	}
	if header.BaseFee == nil {
		return 0, fmt.Errorf("chain: chain does not report a base fee (pre-EIP-1559)")
	}
	gwei := new(big.Float).Quo(new(big.Float).SetInt(header.BaseFee), big.NewFloat(1e9))
	f, _ := gwei.Float64()
	return f, nil
}

func (o *EVMPriceOracle) EthPriceUSD(ctx context.Context) (float64, error) {
	return o.ethUSDFetch(ctx)
}

// WithRetries calls fn up to attempts times, returning the first success
// or the last error.
func WithRetries(attempts int, fn func() (float64, error)) (float64, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err
	}
	return 0, lastErr
}
