package domain

import (
	"fmt"
	"time"
)

// TxTypeTransfer matches transactions moving a strictly positive native value.
const TxTypeTransfer = "transfer"

// Job describes one unit of scan work. The scheduler receives a pull job spanning
// the whole configured range and emits query jobs, one per sub-range.
type Job struct {
	ID      string
	TxTypes []string
	// Address, when set, restricts matches to transactions sent to or from it.
	Address   string
	FromBlock uint64
	// ToBlock of zero means the chain head at scheduling time.
	ToBlock         uint64
	MaxBlockRange   uint64
	PushJobInterval time.Duration
	KeepRunning     bool
}

// Blocks returns the number of blocks covered by [FromBlock, ToBlock].
func (j Job) Blocks() uint64 {
	if j.ToBlock < j.FromBlock {
		return 0
	}
	return j.ToBlock - j.FromBlock + 1
}

func (j Job) String() string {
	return fmt.Sprintf("job(%s)%v[%d,%d]", j.ID, j.TxTypes, j.FromBlock, j.ToBlock)
}
