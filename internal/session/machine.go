package session

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"log"
	"time"

	"pose-aligner/internal/overlay"
	"pose-aligner/internal/store"
)

// State is the machine's lifecycle state.
type State int

const (
	Idle State = iota
	Active
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Mode is the per-frame behavior of the active loop.
type Mode interface {
	// Menu lists the commands shown in the corner of every frame.
	Menu() []overlay.MenuItem
	// Frame draws onto f; it may flip f but must not keep it.
	Frame(f Frame)
	// Key reacts to a key press and reports whether it used it.
	Key(k Key) bool
}

// imageSaver is a mode whose displayed frames can be saved with I.
type imageSaver interface {
	ImageTitle() string
}

// paced is a mode that wants a longer key wait between frames.
type paced interface {
	KeyWait() time.Duration
}

// leaver is a mode with a message to print when the loop ends.
type leaver interface {
	Leave(w io.Writer)
}

// waitSetter is an event source whose key wait can be changed.
type waitSetter interface {
	SetWait(time.Duration)
}

// Config wires a Machine.
type Config struct {
	Events  EventSource
	Display Display
	Mode    Mode

	// StartKey moves Idle to Active. Zero starts the machine Active.
	StartKey Key
	// IdleMenu is shown while waiting for StartKey.
	IdleMenu []overlay.MenuItem

	MenuColor color.RGBA
	Images    store.Namer
	Out       io.Writer
}

// Machine runs one interactive session: Idle until the start key, Active
// until escape, then Terminated.
type Machine struct {
	cfg   Config
	state State
	last  Frame
}

// New returns a machine in its initial state.
func New(cfg Config) *Machine {
	if cfg.Out == nil {
		cfg.Out = io.Discard
	}
	m := &Machine{cfg: cfg, state: Idle}
	if cfg.StartKey == 0 {
		m.state = Active
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Run processes events until the machine terminates, the source runs dry
// or ctx is canceled. The last displayed frame is released on return.
func (m *Machine) Run(ctx context.Context) error {
	defer m.release()
	for m.state != Terminated {
		if err := m.Step(ctx); err != nil {
			if errors.Is(err, ErrEndOfInput) {
				return nil
			}
			return err
		}
	}
	return nil
}

// Step handles a single event.
func (m *Machine) Step(ctx context.Context) error {
	m.pace()
	ev, err := m.cfg.Events.Next(ctx)
	if err != nil {
		return err
	}
	switch ev.Kind {
	case EventFrame:
		return m.frame(ev.Frame)
	case EventKey:
		m.key(ev.Key)
	}
	return nil
}

func (m *Machine) pace() {
	ws, ok := m.cfg.Events.(waitSetter)
	if !ok {
		return
	}
	var d time.Duration
	if p, ok := m.cfg.Mode.(paced); ok && m.state == Active {
		d = p.KeyWait()
	}
	ws.SetWait(d)
}

func (m *Machine) frame(f Frame) error {
	if f == nil {
		return nil
	}
	switch m.state {
	case Idle:
		overlay.Menu(f, m.cfg.IdleMenu, m.cfg.MenuColor)
	case Active:
		m.cfg.Mode.Frame(f)
		overlay.Menu(f, m.cfg.Mode.Menu(), m.cfg.MenuColor)
	default:
		f.Close()
		return nil
	}
	if err := m.cfg.Display.Show(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to show frame: %w", err)
	}
	m.keep(f)
	return nil
}

// keep holds the displayed frame for saving and releases the previous one.
func (m *Machine) keep(f Frame) {
	if m.last != nil && m.last != f {
		m.last.Close()
	}
	m.last = f
}

func (m *Machine) release() {
	if m.last != nil {
		m.last.Close()
		m.last = nil
	}
}

func (m *Machine) key(k Key) {
	switch m.state {
	case Idle:
		switch {
		case k == KeyEsc:
			m.state = Terminated
		case k.Is(rune(m.cfg.StartKey)):
			m.state = Active
		}
	case Active:
		if k.Is('i') && m.saveImage() {
			return
		}
		if m.cfg.Mode.Key(k) {
			return
		}
		if k == KeyEsc {
			if l, ok := m.cfg.Mode.(leaver); ok {
				l.Leave(m.cfg.Out)
			}
			m.state = Terminated
		}
	}
}

func (m *Machine) saveImage() bool {
	s, ok := m.cfg.Mode.(imageSaver)
	if !ok {
		return false
	}
	if m.last == nil {
		return true
	}
	path := m.cfg.Images.Path(s.ImageTitle(), "jpg")
	if err := m.last.Save(path); err != nil {
		log.Printf("session: save image: %v", err)
		return true
	}
	fmt.Fprintf(m.cfg.Out, "Image has been saved as %s\n\n", path)
	return true
}
