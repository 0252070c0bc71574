package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"txcrawler/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	maxErrorBody    = 512
	maxResponseBody = 1 << 20
)

type Config struct {
	URL     string
	Timeout time.Duration
}

// Client posts matched transactions to the configured webhook.
type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("callback url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) URL() string {
	return c.url
}

// Deliver POSTs tx as JSON. Transport failures and non-2xx statuses are
// returned as errors. A 2xx body is decoded as {code,msg,data} when it can be;
// an undecodable body still counts as delivered.
func (c *Client) Deliver(ctx context.Context, tx domain.CompactTx) (domain.CallbackResponse, error) {
	ctx, span := otel.Tracer("txcrawler/callback").Start(ctx, "callback.deliver",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("tx.hash", tx.TxHash),
			attribute.Int64("block.number", int64(tx.BlockNumber)),
		),
	)
	defer span.End()

	resp, err := c.post(ctx, tx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.CallbackResponse{}, err
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, tx domain.CompactTx) (domain.CallbackResponse, error) {
	body, err := json.Marshal(tx)
	if err != nil {
		return domain.CallbackResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return domain.CallbackResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.CallbackResponse{}, fmt.Errorf("callback %s: %w", tx.TxHash, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain.CallbackResponse{}, fmt.Errorf("callback %s: status %d: %s", tx.TxHash, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	// Any 2xx is a delivery; the body is informational only.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		slog.Debug("callback response unreadable", "tx", tx.TxHash, "err", err)
		return domain.CallbackResponse{}, nil
	}
	var decoded domain.CallbackResponse
	if len(bytes.TrimSpace(raw)) == 0 {
		return decoded, nil
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		slog.Debug("callback response not decoded", "tx", tx.TxHash, "status", resp.StatusCode, "err", err)
		return domain.CallbackResponse{}, nil
	}
	return decoded, nil
}
