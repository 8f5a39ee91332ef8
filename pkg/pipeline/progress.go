package pipeline

import (
	"sync"

	"genre-swap/pkg/models"
)

// a job emits at most six stage events plus one terminal event
const maxEvents = 8

// progress fans one job's events out to every subscriber. Late
// subscribers get the events they missed replayed first.
type progress struct {
	mu      sync.Mutex
	history []models.ProgressEvent
	subs    map[chan models.ProgressEvent]struct{}
	closed  bool
}

func newProgress() *progress {
	return &progress{subs: make(map[chan models.ProgressEvent]struct{})}
}

// subscribe returns a channel that is closed after the terminal event.
func (p *progress) subscribe() <-chan models.ProgressEvent {
	ch := make(chan models.ProgressEvent, maxEvents)
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ev := range p.history {
		ch <- ev
	}
	if p.closed {
		close(ch)
		return ch
	}
	p.subs[ch] = struct{}{}
	return ch
}

func (p *progress) publish(ev models.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.history = append(p.history, ev)
	for ch := range p.subs {
		select {
		case ch <- ev:
		default:
			// the buffer holds every event a job can emit
		}
	}
}

func (p *progress) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for ch := range p.subs {
		close(ch)
	}
	p.subs = nil
}
