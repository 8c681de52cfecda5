package player

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Exec plays files through an OS-native audio command (aplay, paplay, afplay).
type Exec struct {
	command string
	args    []string
}

// NewExec creates an exec player. An empty command is auto-detected.
func NewExec(command string, args []string) (*Exec, error) {
	if command == "" {
		command, args = detectAudioCommand()
		if command == "" {
			return nil, errors.New("no audio player found in PATH")
		}
	}
	return &Exec{command: command, args: args}, nil
}

// Play implements Player.
func (e *Exec) Play(ctx context.Context, path string) error {
	args := make([]string, len(e.args)+1)
	copy(args, e.args)
	args[len(args)-1] = path

	cmd := exec.CommandContext(ctx, e.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %v: %s", ErrPlayback, e.command, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// detectAudioCommand returns the audio command and base arguments for the current platform.
func detectAudioCommand() (string, []string) {
	switch runtime.GOOS {
	case "darwin":
		if path, err := exec.LookPath("afplay"); err == nil {
			return path, nil
		}
	case "linux":
		// ALSA first: the mixer controls the ALSA master directly
		if path, err := exec.LookPath("aplay"); err == nil {
			return path, []string{"-q"}
		}
		if path, err := exec.LookPath("paplay"); err == nil {
			return path, nil
		}
	}
	return "", nil
}
