package application

import (
	"context"
	"log/slog"

	"txcrawler/internal/domain"
	"txcrawler/internal/retry"
)

// Notifier delivers drained transactions to the callback endpoint one by
// one, in queue order.
type Notifier struct {
	sender   CallbackSender
	policy   retry.Policy
	observer Observer
	logger   *slog.Logger
}

// NewNotifier returns a notifier; a nil sender makes it a no-op.
func NewNotifier(sender CallbackSender, policy retry.Policy, observer Observer) *Notifier {
	return &Notifier{
		sender:   sender,
		policy:   policy,
		observer: observerOrNop(observer),
		logger:   slog.Default().With("component", "callback"),
	}
}

func (n *Notifier) Enabled() bool {
	return n.sender != nil
}

func (n *Notifier) Handle(ctx context.Context, batch []domain.CompactTx) {
	if n.sender == nil {
		return
	}
	for _, tx := range batch {
		if ctx.Err() != nil {
			return
		}
		n.Notify(ctx, tx)
	}
}

// Notify delivers tx with retries and reports whether it was accepted.
func (n *Notifier) Notify(ctx context.Context, tx domain.CompactTx) bool {
	resp, err := retry.Value(ctx, n.policy, func(ctx context.Context) (domain.CallbackResponse, error) {
		return n.sender.Deliver(ctx, tx)
	})
	n.observer.OnCallback(err == nil)
	if err != nil {
		n.logger.Error("callback dropped", "tx", tx.TxHash, "block", tx.BlockNumber, "err", err)
		return false
	}
	n.logger.Debug("callback delivered", "tx", tx.TxHash, "block", tx.BlockNumber, "code", resp.Code, "msg", resp.Msg)
	return true
}
