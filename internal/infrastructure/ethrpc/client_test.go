package ethrpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRPCServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		result, ok := results[req.Method]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]any{"code": -32601, "message": "method not found"},
			})
			return
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + result + `}`))
	}))
}

func TestClient_BlockNumber(t *testing.T) {
	server := newRPCServer(t, map[string]string{"eth_blockNumber": `"0x1b4"`})
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL})
	require.NoError(t, err)

	head, err := client.BlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(436), head)
}

func TestClient_BlockWithTransactions(t *testing.T) {
	block := `{
		"number": "0xa",
		"hash": "0xBLOCK",
		"timestamp": "0x6553f100",
		"transactions": [
			{
				"hash": "0xTX1",
				"blockNumber": "0xa",
				"blockHash": "0xBLOCK",
				"transactionIndex": "0x0",
				"from": "0xFROM",
				"to": "0xTO",
				"value": "0x1000000000000000000000000",
				"nonce": "0x2",
				"gas": "0x5208",
				"gasPrice": "0x3b9aca00"
			},
			{
				"hash": "0xTX2",
				"from": "0xFROM",
				"to": null,
				"value": "0x0",
				"nonce": "0x3",
				"gas": "0x5208"
			}
		]
	}`
	server := newRPCServer(t, map[string]string{"eth_getBlockByNumber": block})
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL})
	require.NoError(t, err)

	got, err := client.BlockWithTransactions(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.Number)
	assert.Equal(t, uint64(1700000000), got.Timestamp)
	require.Len(t, got.Transactions, 2)

	first := got.Transactions[0]
	assert.Equal(t, "0xtx1", first.Hash)
	assert.Equal(t, "0xblock", first.BlockHash)
	assert.Equal(t, "0xto", first.To)
	assert.Equal(t, "79228162514264337593543950336", first.Value.String())
	assert.Equal(t, uint64(21000), first.Gas.Uint64())
	assert.Equal(t, uint64(1_000_000_000), first.GasPrice.Uint64())

	second := got.Transactions[1]
	assert.Equal(t, "", second.To)
	assert.Equal(t, uint64(10), second.BlockNumber)
	assert.Equal(t, 0, second.Value.Sign())
	assert.Nil(t, second.GasPrice)
}

func TestClient_MissingBlockAndReceipt(t *testing.T) {
	server := newRPCServer(t, map[string]string{
		"eth_getBlockByNumber":      `null`,
		"eth_getTransactionReceipt": `null`,
	})
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL})
	require.NoError(t, err)

	_, err = client.BlockWithTransactions(context.Background(), 99)
	assert.True(t, errors.Is(err, ErrBlockUnavailable))

	_, err = client.TransactionReceipt(context.Background(), "0xabc")
	assert.True(t, errors.Is(err, ErrReceiptUnavailable))
}

func TestClient_TransactionReceipt(t *testing.T) {
	server := newRPCServer(t, map[string]string{
		"eth_getTransactionReceipt": `{"transactionHash":"0xABC","status":"0x1","gasUsed":"0x5208"}`,
	})
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL})
	require.NoError(t, err)

	receipt, err := client.TransactionReceipt(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", receipt.TxHash)
	require.NotNil(t, receipt.Status)
	assert.Equal(t, uint64(1), *receipt.Status)
	assert.Equal(t, uint64(21000), receipt.GasUsed.Uint64())
}

func TestClient_RPCError(t *testing.T) {
	server := newRPCServer(t, map[string]string{})
	defer server.Close()

	client, err := NewClient(Config{URL: server.URL})
	require.NoError(t, err)

	_, err = client.BlockNumber(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "method not found")
}
