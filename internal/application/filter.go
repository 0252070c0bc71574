package application

import (
	"strings"

	"txcrawler/internal/domain"
)

// Filter decides which transactions of a block a job is interested in.
// A transaction matches when it satisfies at least one configured type and,
// if an address is set, is sent to or from that address.
type Filter struct {
	txTypes []string
	address string
}

func NewFilter(job domain.Job) Filter {
	return Filter{
		txTypes: job.TxTypes,
		address: strings.ToLower(strings.TrimSpace(job.Address)),
	}
}

func (f Filter) Match(tx domain.Transaction) bool {
	if f.address != "" && !strings.EqualFold(tx.To, f.address) && !strings.EqualFold(tx.From, f.address) {
		return false
	}
	if len(f.txTypes) == 0 {
		return true
	}
	for _, txType := range f.txTypes {
		if matchesType(txType, tx) {
			return true
		}
	}
	return false
}

func matchesType(txType string, tx domain.Transaction) bool {
	switch txType {
	case domain.TxTypeTransfer:
		return tx.Value != nil && tx.Value.Sign() > 0
	default:
		return false
	}
}
