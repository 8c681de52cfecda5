// Package alsa implements mixer.Mixer on top of the ALSA userspace tools.
//
// Cards are read from /proc/asound/cards; controls are listed and changed
// through amixer:
//
//	amixer -c <card> scontrols
//	amixer -q -c <card> sset <control> <N>% | mute | unmute
//	amixer -c <card> sget <control>
package alsa

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nadzzz/audiobridge/internal/config"
	"github.com/nadzzz/audiobridge/internal/mixer"
)

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

var (
	cardLine    = regexp.MustCompile(`^\s*(\d+)\s+\[([^\]]*)\]:\s*(.*)$`)
	controlLine = regexp.MustCompile(`^Simple mixer control '([^']*)',\d+`)
	percentRe   = regexp.MustCompile(`\[(\d{1,3})%\]`)
)

// Mixer drives ALSA controls via amixer.
type Mixer struct {
	amixer    string
	cardsFile string
	run       Runner
}

// New creates an ALSA mixer from config.
func New(cfg config.MixerConfig) *Mixer {
	amixer := cfg.AmixerPath
	if amixer == "" {
		amixer = "amixer"
	}
	cardsFile := cfg.CardsFile
	if cardsFile == "" {
		cardsFile = "/proc/asound/cards"
	}
	return &Mixer{amixer: amixer, cardsFile: cardsFile, run: execRunner}
}

// WithRunner replaces the command runner. Used by tests.
func (m *Mixer) WithRunner(r Runner) *Mixer {
	m.run = r
	return m
}

// Cards implements mixer.Mixer.
func (m *Mixer) Cards(ctx context.Context) ([]mixer.Card, error) {
	data, err := os.ReadFile(m.cardsFile)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", m.cardsFile, err)
	}
	return parseCards(data), nil
}

// FindControl implements mixer.Mixer. Cards that fail to list controls are skipped.
func (m *Mixer) FindControl(ctx context.Context, name string) (mixer.Card, error) {
	cards, err := m.Cards(ctx)
	if err != nil {
		return mixer.Card{}, err
	}
	for _, c := range cards {
		controls, err := m.controls(ctx, c.Index)
		if err != nil {
			slog.Debug("listing mixer controls failed", "card", c.Index, "error", err)
			continue
		}
		for _, ctl := range controls {
			if ctl == name {
				return c, nil
			}
		}
	}
	return mixer.Card{}, fmt.Errorf("%w: no card exposes %q", mixer.ErrDeviceNotFound, name)
}

// SetMute implements mixer.Mixer.
func (m *Mixer) SetMute(ctx context.Context, dev mixer.Device, muted bool) error {
	state := "unmute"
	if muted {
		state = "mute"
	}
	return m.sset(ctx, dev, state)
}

// SetVolume implements mixer.Mixer.
func (m *Mixer) SetVolume(ctx context.Context, dev mixer.Device, percent int) error {
	return m.sset(ctx, dev, strconv.Itoa(percent)+"%")
}

// Volume implements mixer.Mixer. The first channel's level is reported.
func (m *Mixer) Volume(ctx context.Context, dev mixer.Device) (int, error) {
	args := append(cardArgs(dev.Card), "sget", dev.Control)
	out, err := m.run(ctx, m.amixer, args...)
	if err != nil {
		return 0, fmt.Errorf("amixer sget %s: %w", dev, err)
	}
	return parsePercent(out)
}

func (m *Mixer) sset(ctx context.Context, dev mixer.Device, value string) error {
	args := append([]string{"-q"}, cardArgs(dev.Card)...)
	args = append(args, "sset", dev.Control, value)
	if _, err := m.run(ctx, m.amixer, args...); err != nil {
		return fmt.Errorf("amixer sset %s %s: %w", dev, value, err)
	}
	return nil
}

func (m *Mixer) controls(ctx context.Context, card int) ([]string, error) {
	args := append(cardArgs(card), "scontrols")
	out, err := m.run(ctx, m.amixer, args...)
	if err != nil {
		return nil, err
	}
	return parseControls(out), nil
}

func cardArgs(card int) []string {
	if card == mixer.DefaultCard {
		return nil
	}
	return []string{"-c", strconv.Itoa(card)}
}

func parseCards(data []byte) []mixer.Card {
	var cards []mixer.Card
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		m := cardLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		cards = append(cards, mixer.Card{
			Index: idx,
			ID:    strings.TrimSpace(m[2]),
			Name:  strings.TrimSpace(m[3]),
		})
	}
	return cards
}

func parseControls(out []byte) []string {
	var controls []string
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if m := controlLine.FindStringSubmatch(strings.TrimSpace(sc.Text())); m != nil {
			controls = append(controls, m[1])
		}
	}
	return controls
}

func parsePercent(out []byte) (int, error) {
	m := percentRe.FindSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("no level in amixer output %q", bytes.TrimSpace(out))
	}
	return strconv.Atoi(string(m[1]))
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%w: %s", err, bytes.TrimSpace(out))
	}
	return out, nil
}
