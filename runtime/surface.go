package runtime

import (
	"time"

	"github.com/justapithecus/flanker/device"
	"github.com/justapithecus/flanker/metrics"
)

// countingSurface counts committed frames.
type countingSurface struct {
	device.Surface
	collector *metrics.Collector
}

// NewCountingSurface wraps s so every successful Commit is counted in c.
// Share the wrapped surface between the window and the runner.
func NewCountingSurface(s device.Surface, c *metrics.Collector) device.Surface {
	if c == nil {
		return s
	}
	return &countingSurface{Surface: s, collector: c}
}

func (s *countingSurface) Commit() (time.Time, error) {
	at, err := s.Surface.Commit()
	if err == nil {
		s.collector.AddFramesDrawn(1)
	}
	return at, err
}
