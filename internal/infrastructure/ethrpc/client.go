package ethrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"txcrawler/internal/domain"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrBlockUnavailable   = errors.New("block unavailable")
	ErrReceiptUnavailable = errors.New("receipt unavailable")
)

type Client struct {
	url        string
	httpClient *http.Client
	idCounter  uint64
}

type Config struct {
	URL     string
	Timeout time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("rpc url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var result hexutil.Uint64
	if err := c.call(ctx, "eth_blockNumber", []any{}, &result); err != nil {
		return 0, err
	}
	return uint64(result), nil
}

func (c *Client) BlockWithTransactions(ctx context.Context, number uint64) (domain.Block, error) {
	var result *rpcBlock
	if err := c.call(ctx, "eth_getBlockByNumber", []any{hexutil.EncodeUint64(number), true}, &result); err != nil {
		return domain.Block{}, err
	}
	if result == nil {
		return domain.Block{}, fmt.Errorf("%w: %d", ErrBlockUnavailable, number)
	}

	block := domain.Block{
		Number:       uint64(result.Number),
		Hash:         strings.ToLower(result.Hash),
		Timestamp:    uint64(result.Timestamp),
		Transactions: make([]domain.Transaction, 0, len(result.Transactions)),
	}
	for _, tx := range result.Transactions {
		block.Transactions = append(block.Transactions, tx.toDomain(block))
	}
	return block, nil
}

func (c *Client) TransactionReceipt(ctx context.Context, txHash string) (domain.Receipt, error) {
	var result *rpcReceipt
	if err := c.call(ctx, "eth_getTransactionReceipt", []any{txHash}, &result); err != nil {
		return domain.Receipt{}, err
	}
	if result == nil {
		return domain.Receipt{}, fmt.Errorf("%w: %s", ErrReceiptUnavailable, txHash)
	}

	receipt := domain.Receipt{
		TxHash:  strings.ToLower(result.TransactionHash),
		GasUsed: bigOrNil(result.GasUsed),
	}
	if result.Status != nil {
		status := uint64(*result.Status)
		receipt.Status = &status
	}
	return receipt, nil
}

type rpcBlock struct {
	Number       hexutil.Uint64   `json:"number"`
	Hash         string           `json:"hash"`
	Timestamp    hexutil.Uint64   `json:"timestamp"`
	Transactions []rpcTransaction `json:"transactions"`
}

type rpcTransaction struct {
	Hash             string          `json:"hash"`
	BlockNumber      *hexutil.Uint64 `json:"blockNumber"`
	BlockHash        *string         `json:"blockHash"`
	TransactionIndex *hexutil.Uint64 `json:"transactionIndex"`
	From             string          `json:"from"`
	To               *string         `json:"to"`
	Value            *hexutil.Big    `json:"value"`
	Nonce            hexutil.Uint64  `json:"nonce"`
	Gas              *hexutil.Big    `json:"gas"`
	GasPrice         *hexutil.Big    `json:"gasPrice"`
}

func (tx rpcTransaction) toDomain(block domain.Block) domain.Transaction {
	out := domain.Transaction{
		Hash:        strings.ToLower(tx.Hash),
		BlockNumber: block.Number,
		BlockHash:   block.Hash,
		From:        strings.ToLower(tx.From),
		Value:       bigOrNil(tx.Value),
		Nonce:       uint64(tx.Nonce),
		Gas:         bigOrNil(tx.Gas),
		GasPrice:    bigOrNil(tx.GasPrice),
	}
	if tx.BlockNumber != nil {
		out.BlockNumber = uint64(*tx.BlockNumber)
	}
	if tx.BlockHash != nil {
		out.BlockHash = strings.ToLower(*tx.BlockHash)
	}
	if tx.TransactionIndex != nil {
		out.TxIndex = uint64(*tx.TransactionIndex)
	}
	if tx.To != nil {
		out.To = strings.ToLower(*tx.To)
	}
	return out
}

type rpcReceipt struct {
	TransactionHash string          `json:"transactionHash"`
	Status          *hexutil.Uint64 `json:"status"`
	GasUsed         *hexutil.Big    `json:"gasUsed"`
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	id := atomic.AddUint64(&c.idCounter, 1)
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("rpc %s status %d", method, resp.StatusCode)
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("rpc %s decode: %w", method, err)
	}
	if decoded.Error != nil {
		return fmt.Errorf("rpc %s error %d: %s", method, decoded.Error.Code, decoded.Error.Message)
	}
	if result == nil {
		return nil
	}
	if len(decoded.Result) == 0 {
		return errors.New("rpc result is empty")
	}
	return json.Unmarshal(decoded.Result, result)
}

func bigOrNil(value *hexutil.Big) *big.Int {
	if value == nil {
		return nil
	}
	return new(big.Int).Set(value.ToInt())
}
