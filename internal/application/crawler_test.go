package application

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"txcrawler/internal/config"
	"txcrawler/internal/domain"
	"txcrawler/internal/infrastructure/callback"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCrawlerConfig() CrawlerConfig {
	return CrawlerConfig{
		TxTypes:               []string{domain.TxTypeTransfer},
		FromBlock:             1,
		ToBlock:               9,
		MaxBlockRange:         2,
		QueryInterval:         time.Millisecond,
		LoopInterval:          2 * time.Millisecond,
		ExecuteJobConcurrency: 3,
		ChunkSize:             2,
		Retry:                 noWait,
	}
}

func TestCrawlerRunsPipelineEndToEnd(t *testing.T) {
	chain := newFakeChain(100)
	for block := uint64(1); block <= 9; block++ {
		chain.addTx(block, fmt.Sprintf("0xa%d", block), int64(block))
		chain.addTx(block, fmt.Sprintf("0xz%d", block), 0)
	}
	store := newMemoryStore()
	hook := &webhook{}
	srv := httptest.NewServer(hook)
	defer srv.Close()
	client, err := callback.NewClient(callback.Config{URL: srv.URL})
	require.NoError(t, err)

	crawler, err := NewCrawler(CrawlerDeps{Chain: chain, Store: store, Callback: client}, testCrawlerConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- crawler.Run(ctx) }()

	require.Eventually(t, func() bool {
		return store.len() == 9 && len(hook.got()) == 9
	}, 5*time.Second, 5*time.Millisecond)

	state := crawler.State()
	assert.True(t, state.CallbackEnabled)
	assert.False(t, state.StreamEnabled)
	assert.Equal(t, uint64(10), state.Cursor.NextFrom)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestCrawlerRunsPushedJobs(t *testing.T) {
	chain := newFakeChain(100)
	chain.addTx(3, "0xa", 1)
	chain.addTx(50, "0xb", 1)
	store := newMemoryStore()

	cfg := testCrawlerConfig()
	cfg.ToBlock = 5
	crawler, err := NewCrawler(CrawlerDeps{Chain: chain, Store: store}, cfg)
	require.NoError(t, err)

	job, err := crawler.PushJob(domain.Job{FromBlock: 49, ToBlock: 51})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, []string{domain.TxTypeTransfer}, job.TxTypes)
	assert.Equal(t, uint64(2), job.MaxBlockRange)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = crawler.Run(ctx) }()

	require.Eventually(t, func() bool { return store.len() == 2 }, 5*time.Second, 5*time.Millisecond)
}

func TestCrawlerPushJobValidates(t *testing.T) {
	crawler, err := NewCrawler(CrawlerDeps{Chain: newFakeChain(10), Store: newMemoryStore()}, testCrawlerConfig())
	require.NoError(t, err)

	_, err = crawler.PushJob(domain.Job{FromBlock: 10, ToBlock: 2})
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, err = crawler.PushJob(domain.Job{FromBlock: 1, Address: "nope"})
	assert.ErrorIs(t, err, config.ErrInvalid)
	_, err = crawler.PushJob(domain.Job{FromBlock: 1, TxTypes: []string{"mint"}})
	assert.ErrorIs(t, err, config.ErrInvalid)
	assert.Zero(t, crawler.State().PendingPullJobs)
}

func TestCrawlerStopsOnInvalidConfiguredRange(t *testing.T) {
	cfg := testCrawlerConfig()
	cfg.FromBlock, cfg.ToBlock = 500, 0
	crawler, err := NewCrawler(CrawlerDeps{Chain: newFakeChain(10), Store: newMemoryStore()}, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = crawler.Run(ctx)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestNewCrawlerRequiresDependencies(t *testing.T) {
	_, err := NewCrawler(CrawlerDeps{Store: newMemoryStore()}, testCrawlerConfig())
	assert.Error(t, err)
}

func TestCrawlerRejectsPushWhileTailing(t *testing.T) {
	cfg := testCrawlerConfig()
	cfg.ToBlock = 0
	cfg.KeepRunning = true
	crawler, err := NewCrawler(CrawlerDeps{Chain: newFakeChain(20), Store: newMemoryStore()}, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = crawler.Run(ctx) }()

	require.Eventually(t, func() bool {
		state := crawler.State()
		return state.TailingJob && state.Cursor.Running
	}, 5*time.Second, 5*time.Millisecond)
	_, err = crawler.PushJob(domain.Job{FromBlock: 1, ToBlock: 3})
	assert.ErrorIs(t, err, ErrTailingJobActive)
	assert.Zero(t, crawler.State().PendingPullJobs)
}

func TestCrawlerQueuesOnlyOneTailingPush(t *testing.T) {
	crawler, err := NewCrawler(CrawlerDeps{Chain: newFakeChain(20), Store: newMemoryStore()}, testCrawlerConfig())
	require.NoError(t, err)

	_, err = crawler.PushJob(domain.Job{FromBlock: 1, ToBlock: 3})
	require.NoError(t, err)
	_, err = crawler.PushJob(domain.Job{FromBlock: 5, KeepRunning: true})
	require.NoError(t, err)
	_, err = crawler.PushJob(domain.Job{FromBlock: 8, ToBlock: 9})
	assert.ErrorIs(t, err, ErrTailingJobActive)

	state := crawler.State()
	assert.Equal(t, 2, state.PendingPullJobs)
	assert.True(t, state.TailingJob)
}
