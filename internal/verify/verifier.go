package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gitgood-project/gitgood/internal/chainapi"
	"github.com/gitgood-project/gitgood/internal/metadata"
	"github.com/gitgood-project/gitgood/pkg/model"
)

// DefaultDelay is how long to wait for a submitted transaction to be indexed.
const DefaultDelay = 80 * time.Second

// Indexer looks up metadata documents by label.
type Indexer interface {
	LatestMetadata(ctx context.Context, label uint64) (*chainapi.Entry, error)
}

// Result contains the outcome of verifying one anchored commit.
type Result struct {
	Status       model.VerifyStatus `json:"status"`
	Label        uint64             `json:"label"`
	ExpectedHash string             `json:"expected_hash"`
	OnchainHash  string             `json:"onchain_hash,omitempty"`
	TxHash       string             `json:"tx_hash,omitempty"`
	Severity     string             `json:"severity,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// Verifier compares onchain metadata with the locally recorded commit.
type Verifier struct {
	indexer   Indexer
	delay     time.Duration
	tick      time.Duration
	sleep     func(ctx context.Context, d time.Duration) error
	countdown func(remaining time.Duration)
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithDelay sets the wait before querying the indexer. Zero queries at once.
func WithDelay(d time.Duration) Option {
	return func(v *Verifier) { v.delay = d }
}

// WithCountdown registers fn to be called with the remaining wait once per tick.
func WithCountdown(fn func(remaining time.Duration)) Option {
	return func(v *Verifier) { v.countdown = fn }
}

// WithSleep replaces the context-aware sleep, for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(v *Verifier) { v.sleep = fn }
}

// NewVerifier creates a new verifier.
func NewVerifier(indexer Indexer, opts ...Option) *Verifier {
	v := &Verifier{
		indexer: indexer,
		delay:   DefaultDelay,
		tick:    time.Second,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Delay reports the configured wait.
func (v *Verifier) Delay() time.Duration {
	return v.delay
}

// Verify waits for the configured delay, then checks that the latest document
// under label carries expectedHash. Failures are reported in the result.
func (v *Verifier) Verify(ctx context.Context, label uint64, expectedHash string) *Result {
	result := &Result{
		Label:        label,
		ExpectedHash: expectedHash,
	}

	if err := v.wait(ctx); err != nil {
		result.Status = model.VerifyError
		result.Severity = "error"
		result.Error = fmt.Sprintf("verification interrupted: %v", err)
		return result
	}

	entry, err := v.indexer.LatestMetadata(ctx, label)
	if err != nil {
		if errors.Is(err, chainapi.ErrNotFound) {
			result.Status = model.VerifyPending
			result.Severity = "warning"
			result.Error = "metadata not indexed yet"
			return result
		}
		result.Status = model.VerifyError
		result.Severity = "error"
		result.Error = err.Error()
		return result
	}
	result.TxHash = entry.TxHash

	onchain, ok := metadata.CommitHashFromMsg(entry.Msg)
	if !ok {
		result.Status = model.VerifyError
		result.Severity = "error"
		result.Error = fmt.Sprintf("malformed metadata entry with %d values", len(entry.Msg))
		return result
	}
	result.OnchainHash = onchain

	if onchain != expectedHash {
		result.Status = model.VerifyMismatch
		result.Severity = "critical"
		result.Error = "onchain commit hash differs from local record"
		return result
	}
	result.Status = model.VerifyMatch
	return result
}

func (v *Verifier) wait(ctx context.Context) error {
	for remaining := v.delay; remaining > 0; remaining -= v.tick {
		if v.countdown != nil {
			v.countdown(remaining)
		}
		if err := v.sleep(ctx, min(v.tick, remaining)); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
