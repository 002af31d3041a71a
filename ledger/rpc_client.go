package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/chids04/0xm-relay/logger"
)

// RPCClient provides ledger RPC operations over a pool of endpoints with
// round-robin failover.
type RPCClient struct {
	clients []*ethclient.Client
	index   uint64
	mu      sync.RWMutex
	logger  zerolog.Logger
}

// NewRPCClient connects to the given RPC URLs and validates the chain ID of
// each endpoint against the expected one.
func NewRPCClient(rpcURLs []string, expectedChainID int64, log zerolog.Logger) (*RPCClient, error) {
	if len(rpcURLs) == 0 {
		return nil, fmt.Errorf("no RPC URLs provided")
	}

	log = logger.Component(log, "ledger_rpc_client")
	clients := make([]*ethclient.Client, 0, len(rpcURLs))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, url := range rpcURLs {
		client, err := ethclient.DialContext(ctx, url)
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("failed to connect to RPC endpoint, skipping")
			continue
		}

		chainID, err := client.ChainID(ctx)
		if err != nil {
			// Verification can be slow on congested endpoints; keep the
			// client rather than refusing to start.
			log.Warn().Err(err).Str("url", url).Msg("failed to verify chain ID, proceeding anyway")
			clients = append(clients, client)
			continue
		}
		if chainID.Int64() != expectedChainID {
			client.Close()
			log.Warn().
				Str("url", url).
				Int64("expected_chain_id", expectedChainID).
				Int64("actual_chain_id", chainID.Int64()).
				Msg("chain ID mismatch, closing client")
			continue
		}

		clients = append(clients, client)
		log.Info().Str("url", url).Msg("connected to RPC endpoint")
	}

	if len(clients) == 0 {
		return nil, fmt.Errorf("failed to connect to any valid RPC endpoints")
	}

	return &RPCClient{clients: clients, logger: log}, nil
}

// executeWithFailover executes a function with round-robin failover.
func (rc *RPCClient) executeWithFailover(ctx context.Context, operation string, fn func(*ethclient.Client) error) error {
	rc.mu.RLock()
	clients := rc.clients
	rc.mu.RUnlock()

	if len(clients) == 0 {
		return fmt.Errorf("no RPC clients available for %s", operation)
	}

	maxAttempts := len(clients)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		index := atomic.AddUint64(&rc.index, 1) - 1
		client := clients[index%uint64(len(clients))]
		if client == nil {
			continue
		}

		err := fn(client)
		if err == nil {
			return nil
		}

		rc.logger.Warn().
			Str("operation", operation).
			Int("attempt", attempt+1).
			Err(err).
			Msg("operation failed, trying next endpoint")
	}

	return fmt.Errorf("operation %s failed after trying %d endpoints", operation, maxAttempts)
}

// CallContract performs a read-only contract call.
func (rc *RPCClient) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	var out []byte
	err := rc.executeWithFailover(ctx, "call_contract", func(client *ethclient.Client) error {
		var innerErr error
		out, innerErr = client.CallContract(ctx, msg, nil)
		return innerErr
	})
	return out, err
}

// EstimateGas estimates the gas needed for the given call.
func (rc *RPCClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var gas uint64
	err := rc.executeWithFailover(ctx, "estimate_gas", func(client *ethclient.Client) error {
		var innerErr error
		gas, innerErr = client.EstimateGas(ctx, msg)
		return innerErr
	})
	return gas, err
}

// GetGasPrice fetches the current suggested gas price.
func (rc *RPCClient) GetGasPrice(ctx context.Context) (*big.Int, error) {
	var gasPrice *big.Int
	err := rc.executeWithFailover(ctx, "get_gas_price", func(client *ethclient.Client) error {
		callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		var innerErr error
		gasPrice, innerErr = client.SuggestGasPrice(callCtx)
		return innerErr
	})
	return gasPrice, err
}

// GetPendingNonce returns the pending account nonce for an address.
func (rc *RPCClient) GetPendingNonce(ctx context.Context, addr ethcommon.Address) (uint64, error) {
	var nonce uint64
	err := rc.executeWithFailover(ctx, "get_pending_nonce", func(client *ethclient.Client) error {
		var innerErr error
		nonce, innerErr = client.PendingNonceAt(ctx, addr)
		return innerErr
	})
	return nonce, err
}

// GetLatestBlock returns the latest block number.
func (rc *RPCClient) GetLatestBlock(ctx context.Context) (uint64, error) {
	var blockNum uint64
	err := rc.executeWithFailover(ctx, "get_block_number", func(client *ethclient.Client) error {
		var innerErr error
		blockNum, innerErr = client.BlockNumber(ctx)
		return innerErr
	})
	return blockNum, err
}

// BroadcastTransaction sends a signed transaction.
func (rc *RPCClient) BroadcastTransaction(ctx context.Context, tx *types.Transaction) error {
	return rc.executeWithFailover(ctx, "send_transaction", func(client *ethclient.Client) error {
		return client.SendTransaction(ctx, tx)
	})
}

// GetTransactionReceipt fetches a transaction receipt.
func (rc *RPCClient) GetTransactionReceipt(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := rc.executeWithFailover(ctx, "get_transaction_receipt", func(client *ethclient.Client) error {
		var innerErr error
		receipt, innerErr = client.TransactionReceipt(ctx, txHash)
		return innerErr
	})
	return receipt, err
}

// FilterLogs fetches logs matching the filter query.
func (rc *RPCClient) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := rc.executeWithFailover(ctx, "filter_logs", func(client *ethclient.Client) error {
		var innerErr error
		logs, innerErr = client.FilterLogs(ctx, query)
		return innerErr
	})
	return logs, err
}

// IsHealthy checks whether any endpoint in the pool answers.
func (rc *RPCClient) IsHealthy(ctx context.Context) bool {
	rc.mu.RLock()
	hasClients := len(rc.clients) > 0
	rc.mu.RUnlock()
	if !hasClients {
		return false
	}
	_, err := rc.GetLatestBlock(ctx)
	return err == nil
}

// Close closes all RPC connections.
func (rc *RPCClient) Close() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	for _, client := range rc.clients {
		if client != nil {
			client.Close()
		}
	}
	rc.clients = nil
}
