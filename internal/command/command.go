// Package command parses inbound topic/payload pairs into typed playback commands.
//
// Topic grammar (after the subscribed prefix, "audio/" by default):
//
//	set/volume           "42"                                   -> SetVolume
//	speak[/<int>]        "text to speak"                        -> Speak
//	play[/<int>]         "sound_id"                             -> Play
//	play/json            {"name","volume"?}                     -> Play
//	speak/json           {"text","voice"?,"volume"?}            -> Speak
//	announcement/json    {"sound","text","voice"?,"volume"?}    -> Announcement
//
// "speech" is accepted wherever "speak" is.
package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrParse is returned for malformed topics or payloads. The message is dropped.
var ErrParse = errors.New("parse error")

// Kind identifies the command variant.
type Kind int

const (
	Unrecognized Kind = iota
	SetVolume
	Play
	Speak
	Announcement
)

func (k Kind) String() string {
	switch k {
	case SetVolume:
		return "set_volume"
	case Play:
		return "play"
	case Speak:
		return "speak"
	case Announcement:
		return "announcement"
	default:
		return "unrecognized"
	}
}

// Command is a canonical playback request. Values are immutable once
// returned from Parse.
type Command struct {
	Kind    Kind
	SoundID string
	Text    string
	Voice   string
	// Volume is nil when the request does not ask for a level. For SetVolume
	// it is always set.
	Volume *int
}

// Validate checks the field requirements of each kind.
func (c Command) Validate() error {
	switch c.Kind {
	case Play:
		if c.SoundID == "" {
			return fmt.Errorf("%w: play requires a sound id", ErrParse)
		}
	case Speak:
		if c.Text == "" {
			return fmt.Errorf("%w: speak requires text", ErrParse)
		}
	case Announcement:
		if c.Text == "" || c.SoundID == "" {
			return fmt.Errorf("%w: announcement requires sound and text", ErrParse)
		}
	case SetVolume:
		if c.Volume == nil {
			return fmt.Errorf("%w: set volume requires a value", ErrParse)
		}
	}
	return nil
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

type playPayload struct {
	Name   string     `json:"name"`
	Sound  string     `json:"sound"`
	Volume jsonVolume `json:"volume"`
}

type speakPayload struct {
	Text   string     `json:"text"`
	Voice  string     `json:"voice"`
	Volume jsonVolume `json:"volume"`
}

type announcementPayload struct {
	Sound  string     `json:"sound"`
	Text   string     `json:"text"`
	Voice  string     `json:"voice"`
	Volume jsonVolume `json:"volume"`
}

// Parse classifies topic and extracts the command. Topics outside prefix or
// not matching the grammar yield an Unrecognized command and a nil error.
func Parse(prefix, topic string, payload []byte) (Command, error) {
	rest, ok := strings.CutPrefix(topic, prefix)
	if !ok {
		return Command{Kind: Unrecognized}, nil
	}
	segments := strings.Split(rest, "/")

	var (
		cmd Command
		err error
	)
	switch segments[0] {
	case "set":
		if len(segments) != 2 || segments[1] != "volume" {
			return Command{Kind: Unrecognized}, nil
		}
		cmd, err = parseSetVolume(payload)
	case "speak", "speech":
		cmd, err = parseSpeak(segments[1:], payload)
	case "play":
		cmd, err = parsePlay(segments[1:], payload)
	case "announcement":
		if len(segments) != 2 || segments[1] != "json" {
			return Command{Kind: Unrecognized}, nil
		}
		cmd, err = parseAnnouncement(payload)
	default:
		return Command{Kind: Unrecognized}, nil
	}
	if err != nil {
		return Command{}, err
	}
	if err := cmd.Validate(); err != nil {
		return Command{}, err
	}
	return cmd, nil
}

func parseSetVolume(payload []byte) (Command, error) {
	v, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil {
		return Command{}, fmt.Errorf("%w: volume %q is not an integer", ErrParse, payload)
	}
	return Command{Kind: SetVolume, Volume: IntPtr(v)}, nil
}

func parseSpeak(tail []string, payload []byte) (Command, error) {
	switch {
	case len(tail) == 1 && tail[0] == "json":
		var p speakPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return Command{}, fmt.Errorf("%w: speak json: %v", ErrParse, err)
		}
		return Command{Kind: Speak, Text: p.Text, Voice: p.Voice, Volume: p.Volume.value}, nil
	default:
		vol, recognized, err := trailingVolume(tail)
		if !recognized {
			return Command{Kind: Unrecognized}, nil
		}
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: Speak, Text: string(payload), Volume: vol}, nil
	}
}

func parsePlay(tail []string, payload []byte) (Command, error) {
	switch {
	case len(tail) == 1 && tail[0] == "json":
		var p playPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return Command{}, fmt.Errorf("%w: play json: %v", ErrParse, err)
		}
		name := p.Name
		if name == "" {
			name = p.Sound
		}
		return Command{Kind: Play, SoundID: name, Volume: p.Volume.value}, nil
	default:
		vol, recognized, err := trailingVolume(tail)
		if !recognized {
			return Command{Kind: Unrecognized}, nil
		}
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: Play, SoundID: strings.TrimSpace(string(payload)), Volume: vol}, nil
	}
}

func parseAnnouncement(payload []byte) (Command, error) {
	var p announcementPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Command{}, fmt.Errorf("%w: announcement json: %v", ErrParse, err)
	}
	return Command{
		Kind:    Announcement,
		SoundID: p.Sound,
		Text:    p.Text,
		Voice:   p.Voice,
		Volume:  p.Volume.value,
	}, nil
}

// trailingVolume interprets the segments after "speak" or "play". No
// segments means no volume; exactly one segment must be an integer. Deeper
// paths are not part of the grammar.
func trailingVolume(tail []string) (vol *int, recognized bool, err error) {
	switch len(tail) {
	case 0:
		return nil, true, nil
	case 1:
		v, err := strconv.Atoi(tail[0])
		if err != nil {
			return nil, true, fmt.Errorf("%w: topic volume %q is not an integer", ErrParse, tail[0])
		}
		return IntPtr(v), true, nil
	default:
		return nil, false, nil
	}
}

// jsonVolume accepts a JSON number or a numeric string. Fractions truncate.
type jsonVolume struct {
	value *int
}

func (v *jsonVolume) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("volume %s is not a number", data)
	}
	v.value = IntPtr(int(f))
	return nil
}
