// Package eth posts state commitments to a settlement contract on an EVM chain.
package eth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/inertialabsxyz/movement/pkg/config"
	"github.com/inertialabsxyz/movement/pkg/settlement"
)

// ContractABI is the subset of the settlement contract the client uses.
const ContractABI = `[
	{"type":"function","name":"submitBlockCommitment","stateMutability":"nonpayable","outputs":[],
	 "inputs":[{"name":"height","type":"uint256"},{"name":"blockId","type":"bytes32"},{"name":"stateCommitment","type":"bytes32"}]},
	{"type":"event","name":"BlockAccepted","anonymous":false,
	 "inputs":[{"name":"blockId","type":"bytes32","indexed":true},{"name":"stateCommitment","type":"bytes32","indexed":false},{"name":"height","type":"uint256","indexed":false}]}
]`

const (
	submitMethod  = "submitBlockCommitment"
	acceptedEvent = "BlockAccepted"
)

// Backend is the part of the Ethereum JSON-RPC API the client needs.
// *ethclient.Client satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	Close()
}

var _ Backend = (*ethclient.Client)(nil)

// Client is a settlement.Client backed by an EVM settlement contract.
type Client struct {
	backend  Backend
	abi      abi.ABI
	contract common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	gasLimit uint64
	poll     time.Duration
	logger   zerolog.Logger

	// nonce serializes submissions from the signer account.
	nonce sync.Mutex
}

var _ settlement.Client = (*Client)(nil)

// BuildWithConfig dials the settlement chain and builds a client for the configured contract.
func BuildWithConfig(ctx context.Context, cfg config.SettlementConfig, logger zerolog.Logger) (*Client, error) {
	backend, err := ethclient.DialContext(ctx, cfg.RPCAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to dial settlement chain %s: %w", cfg.RPCAddress, err)
	}

	c, err := NewClient(ctx, backend, cfg, logger)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return c, nil
}

// NewClient builds a client over an existing backend.
func NewClient(ctx context.Context, backend Backend, cfg config.SettlementConfig, logger zerolog.Logger) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(ContractABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse settlement contract abi: %w", err)
	}

	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid settlement contract address %q", cfg.ContractAddress)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.SignerPrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid settlement signer key: %w", err)
	}

	chainID := new(big.Int).SetUint64(cfg.ChainID)
	if cfg.ChainID == 0 {
		chainID, err = backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read settlement chain id: %w", err)
		}
	}

	poll := cfg.PollInterval.Duration
	if poll <= 0 {
		poll = time.Second
	}

	c := &Client{
		backend:  backend,
		abi:      parsed,
		contract: common.HexToAddress(cfg.ContractAddress),
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:  chainID,
		gasLimit: cfg.GasLimit,
		poll:     poll,
		logger:   logger.With().Str("component", "settlement_eth").Logger(),
	}
	c.logger.Info().
		Str("contract", c.contract.Hex()).
		Str("signer", c.from.Hex()).
		Str("chain_id", chainID.String()).
		Msg("settlement client ready")
	return c, nil
}

// Address returns the signer address.
func (c *Client) Address() common.Address {
	return c.from
}

// PostCommitment sends a commitment transaction and waits for its receipt.
// A reverted transaction is reported as settlement.ErrCommitmentRejected.
func (c *Client) PostCommitment(ctx context.Context, com settlement.Commitment) error {
	data, err := c.abi.Pack(submitMethod,
		new(big.Int).SetUint64(com.ToHeight),
		toBytes32(com.BlockID),
		toBytes32(com.StateCommitment),
	)
	if err != nil {
		return fmt.Errorf("failed to encode commitment: %w", err)
	}

	tx, err := c.sendTransaction(ctx, data)
	if err != nil {
		return err
	}

	receipt, err := c.waitMined(ctx, tx.Hash())
	if err != nil {
		return err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: transaction %s reverted", settlement.ErrCommitmentRejected, tx.Hash().Hex())
	}

	c.logger.Debug().Uint64("height", com.ToHeight).Str("tx", tx.Hash().Hex()).Msg("commitment mined")
	return nil
}

func (c *Client) sendTransaction(ctx context.Context, data []byte) (*types.Transaction, error) {
	c.nonce.Lock()
	defer c.nonce.Unlock()

	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	tip, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas tip: %w", err)
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %w", err)
	}
	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	gas := c.gasLimit
	if gas == 0 {
		gas, err = c.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:      c.from,
			To:        &c.contract,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Data:      data,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to estimate gas: %w", err)
		}
	}

	tx, err := types.SignTx(types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &c.contract,
		Data:      data,
	}), types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.backend.SendTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}
	return tx, nil
}

func (c *Client) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			c.logger.Debug().Err(err).Str("tx", hash.Hex()).Msg("failed to get receipt")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// StreamAccepted polls the contract logs for BlockAccepted events emitted from the current block on.
func (c *Client) StreamAccepted(ctx context.Context) (<-chan settlement.Commitment, <-chan error, error) {
	from, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get block number: %w", err)
	}

	out := make(chan settlement.Commitment)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(out)

		ticker := time.NewTicker(c.poll)
		defer ticker.Stop()
		for {
			next, err := c.pollAccepted(ctx, from, out)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				select {
				case errs <- err:
				default:
				}
			} else {
				from = next
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return out, errs, nil
}

// pollAccepted delivers the BlockAccepted events in [from, latest] and returns the next block to poll.
func (c *Client) pollAccepted(ctx context.Context, from uint64, out chan<- settlement.Commitment) (uint64, error) {
	latest, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return from, fmt.Errorf("failed to get block number: %w", err)
	}
	if latest < from {
		return from, nil
	}

	logs, err := c.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(latest),
		Addresses: []common.Address{c.contract},
		Topics:    [][]common.Hash{{c.abi.Events[acceptedEvent].ID}},
	})
	if err != nil {
		return from, fmt.Errorf("failed to filter logs: %w", err)
	}

	for _, l := range logs {
		com, err := c.decodeAccepted(l)
		if err != nil {
			c.logger.Warn().Err(err).Str("tx", l.TxHash.Hex()).Msg("skipping malformed acceptance log")
			continue
		}
		select {
		case out <- com:
		case <-ctx.Done():
			return from, ctx.Err()
		}
	}
	return latest + 1, nil
}

func (c *Client) decodeAccepted(l types.Log) (settlement.Commitment, error) {
	if len(l.Topics) < 2 {
		return settlement.Commitment{}, fmt.Errorf("missing indexed block id")
	}
	values, err := c.abi.Unpack(acceptedEvent, l.Data)
	if err != nil {
		return settlement.Commitment{}, err
	}
	if len(values) != 2 {
		return settlement.Commitment{}, fmt.Errorf("unexpected number of event values: %d", len(values))
	}
	stateCommitment, ok := values[0].([32]byte)
	if !ok {
		return settlement.Commitment{}, fmt.Errorf("unexpected state commitment type %T", values[0])
	}
	height, ok := values[1].(*big.Int)
	if !ok || !height.IsUint64() {
		return settlement.Commitment{}, fmt.Errorf("invalid height %v", values[1])
	}

	return settlement.NewCommitment(height.Uint64(), l.Topics[1].Bytes(), stateCommitment[:]), nil
}

// Close closes the connection to the settlement chain.
func (c *Client) Close() error {
	c.backend.Close()
	return nil
}

// toBytes32 left-pads or truncates b to 32 bytes.
func toBytes32(b []byte) [32]byte {
	var out [32]byte
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(out[32-len(b):], b)
	return out
}
