package poller

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ppe-dashboard/internal/backend"
)

type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateError   State = "error"
)

// Snapshot is what a poller last applied. Data survives a failed fetch so a
// page keeps showing the previous values next to the error.
type Snapshot[T any] struct {
	State     State          `json:"state"`
	Data      T              `json:"data"`
	Err       error          `json:"-"`
	Origin    backend.Origin `json:"origin,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
	Seq       uint64         `json:"seq"`
}

func (s Snapshot[T]) Error() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

type FetchFunc[T any] func(ctx context.Context) (backend.Result[T], error)

type Options struct {
	Clock Clock
	Log   zerolog.Logger
}

// Poller runs one fetch function on an interval and keeps the newest result.
type Poller[T any] struct {
	name     string
	interval time.Duration
	fetch    FetchFunc[T]
	clock    Clock
	log      zerolog.Logger

	mu       sync.RWMutex
	seq      uint64
	applied  uint64
	inflight int
	// settled is the state of the last applied result.
	settled State
	snap    Snapshot[T]
	subs    map[int]chan Snapshot[T]
	nextSub int
}

func New[T any](name string, interval time.Duration, fetch FetchFunc[T], opts Options) *Poller[T] {
	clock := opts.Clock
	if clock == nil {
		clock = RealClock{}
	}
	return &Poller[T]{
		name:     name,
		interval: interval,
		fetch:    fetch,
		clock:    clock,
		log:      opts.Log.With().Str("poller", name).Logger(),
		settled:  StateIdle,
		snap:     Snapshot[T]{State: StateIdle},
		subs:     make(map[int]chan Snapshot[T]),
	}
}

func (p *Poller[T]) Name() string {
	return p.name
}

func (p *Poller[T]) Interval() time.Duration {
	return p.interval
}

func (p *Poller[T]) Snapshot() Snapshot[T] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Fetch performs one fetch. The snapshot reads loading while a fetch is in
// flight, keeping the previous data. A result is applied only when no newer
// fetch has been applied already; results that arrive after ctx ends are
// dropped.
func (p *Poller[T]) Fetch(ctx context.Context) (Snapshot[T], error) {
	p.mu.Lock()
	p.seq++
	seq := p.seq
	if p.inflight == 0 {
		p.snap.State = StateLoading
	}
	p.inflight++
	p.mu.Unlock()

	res, err := p.fetch(ctx)

	p.mu.Lock()
	p.inflight--
	if ctx.Err() != nil {
		if p.inflight == 0 && p.snap.State == StateLoading {
			p.snap.State = p.settled
		}
		snap := p.snap
		p.mu.Unlock()
		return snap, ctx.Err()
	}
	if seq <= p.applied {
		snap := p.snap
		p.mu.Unlock()
		p.log.Debug().Uint64("seq", seq).Uint64("applied", snap.Seq).Msg("discarding stale response")
		return snap, err
	}
	p.applied = seq
	p.snap.Seq = seq
	p.snap.UpdatedAt = p.clock.Now()
	if err != nil {
		p.snap.State = StateError
		p.snap.Err = err
	} else {
		p.snap.State = StateSuccess
		p.snap.Err = nil
		p.snap.Data = res.Data
		p.snap.Origin = res.Origin
	}
	p.settled = p.snap.State
	snap := p.snap
	p.publish(snap)
	p.mu.Unlock()

	if err != nil {
		p.log.Warn().Err(err).Msg("fetch failed")
	}
	return snap, err
}

// Run fetches immediately and then on every tick until ctx ends. Ticks that
// arrive while a fetch is running are coalesced by the ticker.
func (p *Poller[T]) Run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_, _ = p.Fetch(ctx)

	ticker := p.clock.Ticker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if ctx.Err() != nil {
				return
			}
			_, _ = p.Fetch(ctx)
		}
	}
}

// Start runs the poller as a Task.
func (p *Poller[T]) Start(ctx context.Context) *Task {
	return Go(ctx, p.Run)
}

// Subscribe returns a channel receiving every applied snapshot. Slow readers
// only see the latest one.
func (p *Poller[T]) Subscribe() (<-chan Snapshot[T], func()) {
	ch := make(chan Snapshot[T], 1)

	p.mu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
			close(ch)
		})
	}
}

// publish must be called with p.mu held.
func (p *Poller[T]) publish(snap Snapshot[T]) {
	for _, ch := range p.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
