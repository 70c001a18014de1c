package refreshfake

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/go-cms-admin/token/refresh"
	"github.com/jrsteele09/go-cms-admin/transport"
)

var _ refresh.SessionSink = (*Sink)(nil)

// Sink counts forced sign-outs.
type Sink struct {
	signOuts atomic.Int32
}

func (s *Sink) SignOut() {
	s.signOuts.Add(1)
}

func (s *Sink) SignOuts() int {
	return int(s.signOuts.Load())
}

// Refresher is a scripted refresh operation. When Gate is set the call blocks
// until Gate is closed.
type Refresher struct {
	Status int
	Err    error
	Gate   chan struct{}

	calls atomic.Int32
}

func (r *Refresher) Refresh(ctx context.Context) (*transport.Response, error) {
	r.calls.Add(1)
	if r.Gate != nil {
		select {
		case <-r.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return &transport.Response{Status: r.Status}, nil
}

func (r *Refresher) Calls() int {
	return int(r.calls.Load())
}

// Outcome is one scripted result of a Task.
type Outcome struct {
	Status int
	Body   string
	// Err is returned as-is, with no response
	Err error
	// Raw returns error statuses as a plain response instead of a *transport.StatusError
	Raw bool
}

// Task replays outcomes in order; the last outcome repeats.
type Task struct {
	lock     sync.Mutex
	outcomes []Outcome
	calls    int
}

func NewTask(outcomes ...Outcome) *Task {
	return &Task{outcomes: outcomes}
}

func (t *Task) Run(_ context.Context) (*transport.Response, error) {
	t.lock.Lock()
	idx := t.calls
	if idx >= len(t.outcomes) {
		idx = len(t.outcomes) - 1
	}
	t.calls++
	o := t.outcomes[idx]
	t.lock.Unlock()

	if o.Err != nil {
		return nil, o.Err
	}
	resp := &transport.Response{Status: o.Status, Body: []byte(o.Body)}
	if o.Status >= 400 && !o.Raw {
		return nil, &transport.StatusError{Response: resp}
	}
	return resp, nil
}

func (t *Task) Calls() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.calls
}
