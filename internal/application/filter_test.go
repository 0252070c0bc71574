package application

import (
	"math/big"
	"testing"

	"txcrawler/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestFilterTransfer(t *testing.T) {
	filter := NewFilter(domain.Job{TxTypes: []string{domain.TxTypeTransfer}})

	assert.True(t, filter.Match(domain.Transaction{Value: big.NewInt(1)}))
	assert.False(t, filter.Match(domain.Transaction{Value: big.NewInt(0)}))
	assert.False(t, filter.Match(domain.Transaction{}))
}

func TestFilterAddressMatchesEitherSide(t *testing.T) {
	filter := NewFilter(domain.Job{
		TxTypes: []string{domain.TxTypeTransfer},
		Address: "0xABCDEF0000000000000000000000000000000001",
	})
	value := big.NewInt(10)

	assert.True(t, filter.Match(domain.Transaction{To: "0xabcdef0000000000000000000000000000000001", Value: value}))
	assert.True(t, filter.Match(domain.Transaction{From: "0xabcdef0000000000000000000000000000000001", Value: value}))
	assert.False(t, filter.Match(domain.Transaction{From: "0x01", To: "0x02", Value: value}))
}

func TestFilterUnknownTypeMatchesNothing(t *testing.T) {
	filter := NewFilter(domain.Job{TxTypes: []string{"swap"}})
	assert.False(t, filter.Match(domain.Transaction{Value: big.NewInt(1)}))
}
