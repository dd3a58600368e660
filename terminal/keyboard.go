package terminal

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/justapithecus/flanker/device"
)

// Keyboard buffers key presses delivered by the terminal program.
// It is safe for concurrent use: the program goroutine pushes, the engine polls.
type Keyboard struct {
	mu      sync.Mutex
	pending []device.KeyPress
	notify  chan struct{}
	closed  bool
	now     func() time.Time
}

// NewKeyboard creates an empty keyboard buffer.
func NewKeyboard() *Keyboard {
	return &Keyboard{
		notify: make(chan struct{}, 1),
		now:    time.Now,
	}
}

// Push records a press of key detected now.
func (k *Keyboard) Push(key string) {
	k.PushAt(key, k.now())
}

// PushAt records a press of key at the given instant.
func (k *Keyboard) PushAt(key string, at time.Time) {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return
	}
	k.pending = append(k.pending, device.KeyPress{Key: key, At: at})
	k.mu.Unlock()

	select {
	case k.notify <- struct{}{}:
	default:
	}
}

// Poll implements device.InputSource.
func (k *Keyboard) Poll(keys []string) ([]device.KeyPress, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil, ErrClosed
	}
	return k.takeLocked(keys), nil
}

// takeLocked drains the buffer and returns the presses of keys in the set.
func (k *Keyboard) takeLocked(keys []string) []device.KeyPress {
	var out []device.KeyPress
	for _, kp := range k.pending {
		if slices.Contains(keys, kp.Key) {
			out = append(out, kp)
		}
	}
	k.pending = k.pending[:0]
	slices.SortStableFunc(out, func(a, b device.KeyPress) int {
		return a.At.Compare(b.At)
	})
	return out
}

// WaitFor implements device.InputSource.
func (k *Keyboard) WaitFor(ctx context.Context, keys []string, timeout time.Duration) (*device.KeyPress, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		k.mu.Lock()
		if k.closed {
			k.mu.Unlock()
			return nil, ErrClosed
		}
		got := k.takeLocked(keys)
		k.mu.Unlock()
		if len(got) > 0 {
			return &got[0], nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-k.notify:
		}
	}
}

// ClearPending implements device.InputSource.
func (k *Keyboard) ClearPending() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return ErrClosed
	}
	k.pending = k.pending[:0]
	return nil
}

// Close makes every further call fail with ErrClosed and wakes waiters.
func (k *Keyboard) Close() {
	k.mu.Lock()
	k.closed = true
	k.mu.Unlock()

	select {
	case k.notify <- struct{}{}:
	default:
	}
}

var _ device.InputSource = (*Keyboard)(nil)
