// Package terminal is the interactive backend: a full-screen terminal surface
// and keyboard driven by a Bubble Tea program.
//
// Frame commits are paced to the configured refresh rate with a token bucket,
// so a stimulus held for n ticks stays visible for n refresh periods. Key
// presses are stamped when the program receives them.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"github.com/justapithecus/flanker/device"
)

// ErrClosed is returned by a closed screen or keyboard.
var ErrClosed = errors.New("terminal: closed")

// Config configures a terminal screen.
type Config struct {
	// FrameRate is the refresh rate in Hz that commits are paced to.
	FrameRate float64
	// Input defaults to stdin.
	Input io.Reader
	// Output defaults to stdout.
	Output io.Writer
	// AltScreen runs the program in the alternate screen buffer.
	AltScreen bool
	// OnInterrupt is called when ctrl+c is pressed.
	OnInterrupt func()
}

type sender interface {
	Send(msg tea.Msg)
}

// frameMsg replaces the visible element.
type frameMsg struct {
	el device.Element
}

// Screen is a device.Surface backed by a terminal program.
// Its Keyboard is the matching device.InputSource.
type Screen struct {
	ctx     context.Context
	kb      *Keyboard
	limiter *rate.Limiter
	out     sender

	mu     sync.Mutex
	staged *device.Element
	last   device.Element

	program *tea.Program
	done    chan struct{}
	runErr  error
}

// Open starts the terminal program and returns its screen.
// The program stops when ctx ends or Close is called.
func Open(ctx context.Context, cfg Config) (*Screen, error) {
	if cfg.FrameRate <= 0 {
		return nil, fmt.Errorf("terminal: frame rate must be > 0, got %v", cfg.FrameRate)
	}

	kb := NewKeyboard()
	m := newModel(kb, cfg.OnInterrupt)

	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if cfg.Input != nil {
		opts = append(opts, tea.WithInput(cfg.Input))
	}
	if cfg.Output != nil {
		opts = append(opts, tea.WithOutput(cfg.Output))
	}
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	program := tea.NewProgram(m, opts...)

	s := newScreen(ctx, kb, program, cfg.FrameRate)
	s.program = program
	go func() {
		_, err := program.Run()
		s.runErr = err
		kb.Close()
		close(s.done)
	}()
	return s, nil
}

func newScreen(ctx context.Context, kb *Keyboard, out sender, fps float64) *Screen {
	period := time.Duration(float64(time.Second) / fps)
	return &Screen{
		ctx:     ctx,
		kb:      kb,
		limiter: rate.NewLimiter(rate.Every(period), 1),
		out:     out,
		last:    device.Blank(),
		done:    make(chan struct{}),
	}
}

// Keyboard returns the input source fed by this screen.
func (s *Screen) Keyboard() *Keyboard {
	return s.kb
}

// Draw implements device.Surface.
func (s *Screen) Draw(el device.Element) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staged = &el
	return nil
}

// Commit implements device.Surface.
// It waits for the next refresh token, then hands the frame to the program.
func (s *Screen) Commit() (time.Time, error) {
	select {
	case <-s.done:
		return time.Time{}, ErrClosed
	default:
	}

	if err := s.limiter.Wait(s.ctx); err != nil {
		return time.Time{}, fmt.Errorf("terminal: wait for refresh: %w", err)
	}

	s.mu.Lock()
	el := s.last
	if s.staged != nil {
		el = *s.staged
		s.staged = nil
	}
	s.last = el
	s.mu.Unlock()

	s.out.Send(frameMsg{el: el})
	return time.Now(), nil
}

// Close stops the program and restores the terminal.
func (s *Screen) Close() error {
	if s.program == nil {
		s.kb.Close()
		return nil
	}
	s.program.Quit()
	<-s.done
	if s.runErr != nil && !errors.Is(s.runErr, tea.ErrProgramKilled) && !errors.Is(s.runErr, context.Canceled) {
		return fmt.Errorf("terminal: %w", s.runErr)
	}
	return nil
}

var _ device.Surface = (*Screen)(nil)

// model is the Bubble Tea model showing the current frame.
type model struct {
	kb          *Keyboard
	el          device.Element
	width       int
	height      int
	interrupt   key.Binding
	onInterrupt func()
}

func newModel(kb *Keyboard, onInterrupt func()) model {
	return model{
		kb:          kb,
		el:          device.Blank(),
		interrupt:   key.NewBinding(key.WithKeys("ctrl+c")),
		onInterrupt: onInterrupt,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case frameMsg:
		m.el = msg.el
	case tea.KeyMsg:
		if key.Matches(msg, m.interrupt) {
			if m.onInterrupt != nil {
				m.onInterrupt()
			}
			return m, nil
		}
		m.kb.Push(KeyName(msg))
	}
	return m, nil
}

func (m model) View() string {
	return Render(m.el, m.width, m.height)
}

// KeyName maps a terminal key message to the key names used in configuration.
func KeyName(msg tea.KeyMsg) string {
	switch msg.Type {
	case tea.KeyEnter:
		return "return"
	case tea.KeySpace:
		return "space"
	case tea.KeyEsc:
		return "escape"
	}
	return msg.String()
}
