package sim

import (
	"math/rand/v2"
	"time"

	"github.com/justapithecus/flanker/device"
	"github.com/justapithecus/flanker/types"
)

// ParticipantConfig shapes the behaviour of a virtual participant.
type ParticipantConfig struct {
	// LeftKey and RightKey are the reaction keys.
	LeftKey  string
	RightKey string
	// ContinueKey dismisses text and image screens.
	ContinueKey string

	// MeanRT and SDRT describe the congruent reaction time distribution.
	MeanRT time.Duration
	SDRT   time.Duration
	// IncongruentCost is added to the mean for incongruent stimuli.
	IncongruentCost time.Duration
	// MinRT floors every sampled reaction time.
	MinRT time.Duration

	// Accuracy is the probability of pressing the correct key.
	Accuracy float64
	// OmissionRate is the probability of not responding at all.
	OmissionRate float64
	// ReadTime is how long screens are read before ContinueKey is pressed.
	ReadTime time.Duration
}

// DefaultParticipantConfig returns a plausible attentive participant.
func DefaultParticipantConfig() ParticipantConfig {
	return ParticipantConfig{
		LeftKey:         "left",
		RightKey:        "right",
		ContinueKey:     "space",
		MeanRT:          420 * time.Millisecond,
		SDRT:            60 * time.Millisecond,
		IncongruentCost: 60 * time.Millisecond,
		MinRT:           150 * time.Millisecond,
		Accuracy:        0.95,
		OmissionRate:    0.02,
		ReadTime:        time.Second,
	}
}

// Participant watches a Display and schedules key presses on a Keyboard.
type Participant struct {
	cfg  ParticipantConfig
	rng  *rand.Rand
	kb   *Keyboard
	last device.ElementKind
}

// NewParticipant attaches a seeded virtual participant to the display.
func NewParticipant(cfg ParticipantConfig, seed uint64, display *Display, kb *Keyboard) *Participant {
	p := &Participant{
		cfg:  cfg,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		kb:   kb,
		last: device.KindBlank,
	}
	display.Observe(p.onFrame)
	return p
}

func (p *Participant) onFrame(f Frame) {
	kind := f.Element.Kind
	onset := kind != p.last
	p.last = kind
	if !onset {
		return
	}

	switch kind {
	case device.KindStimulus:
		p.respond(*f.Element.Stimulus, f.At)
	case device.KindText, device.KindImage:
		if p.cfg.ContinueKey != "" {
			p.kb.Press(p.cfg.ContinueKey, f.At.Add(p.cfg.ReadTime))
		}
	}
}

func (p *Participant) respond(def types.StimulusDefinition, onset time.Time) {
	if p.rng.Float64() < p.cfg.OmissionRate {
		return
	}

	mean := p.cfg.MeanRT
	if def.Category == types.CategoryIncongruent {
		mean += p.cfg.IncongruentCost
	}
	rt := mean + time.Duration(p.rng.NormFloat64()*float64(p.cfg.SDRT))
	rt = max(rt, p.cfg.MinRT)

	side := def.Correct
	if p.rng.Float64() >= p.cfg.Accuracy {
		side = opposite(side)
	}
	key := p.cfg.LeftKey
	if side == types.SideRight {
		key = p.cfg.RightKey
	}
	p.kb.Press(key, onset.Add(rt))
}

func opposite(s types.Side) types.Side {
	if s == types.SideLeft {
		return types.SideRight
	}
	return types.SideLeft
}
