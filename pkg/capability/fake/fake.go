// Package fake provides deterministic in-memory capabilities with call
// counters, used by pipeline, API and component tests.
package fake

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"genre-swap/pkg/capability"
	"genre-swap/pkg/models"
)

// ErrInjected is returned by fakes configured to fail.
var ErrInjected = errors.New("injected capability failure")

// Splitter copies the input into four stems.
type Splitter struct {
	Delay time.Duration
	Err   error
	calls atomic.Int32
}

func (s *Splitter) Calls() int { return int(s.calls.Load()) }

func (s *Splitter) Split(ctx context.Context, asset *models.AudioAsset) (map[models.StemName]*models.AudioAsset, error) {
	s.calls.Add(1)
	if err := wait(ctx, s.Delay); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	stems := make(map[models.StemName]*models.AudioAsset, len(models.AllStems))
	for _, name := range models.AllStems {
		stems[name] = asset.Derive(slices.Clone(asset.Data), asset.SampleRate, asset.Channels)
	}
	return stems, nil
}

// Classifier returns Result for every asset, or ByAsset when set.
type Classifier struct {
	Result  capability.Classification
	ByAsset func(asset *models.AudioAsset) capability.Classification
	Delay   time.Duration
	Err     error
	calls   atomic.Int32
}

func (c *Classifier) Calls() int { return int(c.calls.Load()) }

func (c *Classifier) Classify(ctx context.Context, asset *models.AudioAsset) (capability.Classification, error) {
	c.calls.Add(1)
	if err := wait(ctx, c.Delay); err != nil {
		return capability.Classification{}, err
	}
	if c.Err != nil {
		return capability.Classification{}, c.Err
	}
	if c.ByAsset != nil {
		return c.ByAsset(asset), nil
	}
	return c.Result, nil
}

// Processor returns a copy of each stem and records every operation.
type Processor struct {
	FailStage string
	Delay     time.Duration

	mu    sync.Mutex
	ops   []capability.Operation
	calls atomic.Int32
}

func (p *Processor) Calls() int { return int(p.calls.Load()) }

// Operations returns the recorded operations in call order.
func (p *Processor) Operations() []capability.Operation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.ops)
}

func (p *Processor) Process(ctx context.Context, stem *models.AudioAsset, op capability.Operation) (*models.AudioAsset, error) {
	p.calls.Add(1)
	p.mu.Lock()
	p.ops = append(p.ops, op)
	p.mu.Unlock()

	if err := wait(ctx, p.Delay); err != nil {
		return nil, err
	}
	if p.FailStage != "" && op.Stage == p.FailStage {
		return nil, ErrInjected
	}
	return stem.Derive(slices.Clone(stem.Data), stem.SampleRate, stem.Channels), nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
