// Package mixer defines the boundary to the hardware mixing device.
//
// A Device names one mixer control on one sound card. The ALSA backend lives
// in the alsa subpackage; Memory is an in-process mixer used on hosts without
// a sound card and in tests.
package mixer

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrDeviceNotFound is returned when no card exposes the requested control.
var ErrDeviceNotFound = errors.New("mixer device not found")

// DefaultCard selects the system default card.
const DefaultCard = -1

// Card is a sound card known to the mixer.
type Card struct {
	Index int
	ID    string
	Name  string
}

// Device addresses a single control on a card.
type Device struct {
	Card    int
	Control string
}

func (d Device) String() string {
	if d.Card == DefaultCard {
		return fmt.Sprintf("default/%s", d.Control)
	}
	return fmt.Sprintf("card%d/%s", d.Card, d.Control)
}

// Mixer is the interface every mixer backend must implement.
type Mixer interface {
	// Cards lists the available sound cards.
	Cards(ctx context.Context) ([]Card, error)

	// FindControl returns the first card exposing a control with the given
	// name, or ErrDeviceNotFound.
	FindControl(ctx context.Context, name string) (Card, error)

	// SetMute mutes or unmutes a control.
	SetMute(ctx context.Context, dev Device, muted bool) error

	// SetVolume sets a control's level in percent (0-100).
	SetVolume(ctx context.Context, dev Device, percent int) error

	// Volume returns a control's live level in percent.
	Volume(ctx context.Context, dev Device) (int, error)
}

// Memory is a Mixer that keeps levels in memory.
type Memory struct {
	mu       sync.Mutex
	cards    []Card
	controls map[int][]string
	levels   map[Device]int
	muted    map[Device]bool
	history  []int
}

// NewMemory creates an in-memory mixer. controls maps card index to the
// control names that card exposes.
func NewMemory(cards []Card, controls map[int][]string) *Memory {
	if controls == nil {
		controls = map[int][]string{}
	}
	return &Memory{
		cards:    cards,
		controls: controls,
		levels:   make(map[Device]int),
		muted:    make(map[Device]bool),
	}
}

// Cards implements Mixer.
func (m *Memory) Cards(ctx context.Context) ([]Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Card, len(m.cards))
	copy(out, m.cards)
	return out, nil
}

// FindControl implements Mixer.
func (m *Memory) FindControl(ctx context.Context, name string) (Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cards {
		for _, ctl := range m.controls[c.Index] {
			if ctl == name {
				return c, nil
			}
		}
	}
	return Card{}, fmt.Errorf("%w: no card exposes %q", ErrDeviceNotFound, name)
}

// SetMute implements Mixer.
func (m *Memory) SetMute(ctx context.Context, dev Device, muted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted[dev] = muted
	return nil
}

// SetVolume implements Mixer. Every call is recorded in History.
func (m *Memory) SetVolume(ctx context.Context, dev Device, percent int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[dev] = percent
	m.history = append(m.history, percent)
	return nil
}

// Volume implements Mixer.
func (m *Memory) Volume(ctx context.Context, dev Device) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[dev], nil
}

// Muted reports whether dev is muted.
func (m *Memory) Muted(dev Device) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted[dev]
}

// History returns every level passed to SetVolume, in order.
func (m *Memory) History() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.history))
	copy(out, m.history)
	return out
}
