package sim

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/justapithecus/flanker/device"
)

// Keyboard is a virtual InputSource fed from a schedule of presses.
// A press becomes observable once the timeline reaches its instant.
type Keyboard struct {
	mu       sync.Mutex
	timeline *Timeline
	pending  []device.KeyPress

	// FailPoll, when set, is returned by every Poll.
	FailPoll error
}

// NewKeyboard creates a keyboard on the timeline.
func NewKeyboard(tl *Timeline) *Keyboard {
	return &Keyboard{timeline: tl}
}

// Press schedules key at the given instant.
func (k *Keyboard) Press(key string, at time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pending = append(k.pending, device.KeyPress{Key: key, At: at})
	slices.SortStableFunc(k.pending, func(a, b device.KeyPress) int {
		return a.At.Compare(b.At)
	})
}

// PressAfter schedules key at d after the current virtual instant.
func (k *Keyboard) PressAfter(key string, d time.Duration) {
	k.Press(key, k.timeline.Now().Add(d))
}

// Pending returns the number of scheduled presses not yet consumed.
func (k *Keyboard) Pending() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.pending)
}

// Poll implements device.InputSource.
// Every press at or before the current instant is consumed; presses of keys
// outside the set are discarded.
func (k *Keyboard) Poll(keys []string) ([]device.KeyPress, error) {
	if k.FailPoll != nil {
		return nil, k.FailPoll
	}
	now := k.timeline.Now()

	k.mu.Lock()
	defer k.mu.Unlock()
	var out []device.KeyPress
	i := 0
	for ; i < len(k.pending) && !k.pending[i].At.After(now); i++ {
		if slices.Contains(keys, k.pending[i].Key) {
			out = append(out, k.pending[i])
		}
	}
	k.pending = k.pending[i:]
	return out, nil
}

// WaitFor implements device.InputSource.
// The timeline jumps to the first matching press within timeout, or by timeout when
// there is none. Non-matching presses passed over are discarded.
func (k *Keyboard) WaitFor(ctx context.Context, keys []string, timeout time.Duration) (*device.KeyPress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := k.timeline.Now()
	deadline := now.Add(timeout)

	k.mu.Lock()
	i := 0
	var hit *device.KeyPress
	for ; i < len(k.pending) && !k.pending[i].At.After(deadline); i++ {
		if slices.Contains(keys, k.pending[i].Key) {
			p := k.pending[i]
			hit = &p
			i++
			break
		}
	}
	k.pending = k.pending[i:]
	k.mu.Unlock()

	if hit == nil {
		k.timeline.AdvanceTo(deadline)
		return nil, nil
	}
	k.timeline.AdvanceTo(hit.At)
	return hit, nil
}

// ClearPending implements device.InputSource.
// Presses scheduled in the future are kept.
func (k *Keyboard) ClearPending() error {
	now := k.timeline.Now()
	k.mu.Lock()
	defer k.mu.Unlock()
	i := 0
	for i < len(k.pending) && !k.pending[i].At.After(now) {
		i++
	}
	k.pending = k.pending[i:]
	return nil
}

var _ device.InputSource = (*Keyboard)(nil)
