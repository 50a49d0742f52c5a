package midi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// ErrNoSources means no external time source could be found or opened.
var ErrNoSources = errors.New("no midi timecode source available")

const DefaultDeviceGlob = "/dev/snd/midiC*D*"

var (
	cardRe = regexp.MustCompile(`midiC(\d+)D\d+$`)
)

// Source is a place raw MIDI bytes can be read from: an ALSA raw MIDI
// device node, or a websocket bridge URL.
type Source struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func (s Source) IsBridge() bool {
	return strings.HasPrefix(s.Path, "ws://") || strings.HasPrefix(s.Path, "wss://")
}

// SourceFor builds a Source from a configured path or URL.
func SourceFor(path string) Source {
	s := Source{Name: filepath.Base(path), Path: path}
	if s.IsBridge() {
		s.Name = path
	}
	return s
}

// ListSources returns the raw MIDI devices matching glob, named after their
// sound card where the card id can be read.
func ListSources(glob string) ([]Source, error) {
	if glob == "" {
		glob = DefaultDeviceGlob
	}
	paths, err := filepath.Glob(glob)
	if err != nil {
		return nil, fmt.Errorf("listing midi devices: %w", err)
	}
	sort.Strings(paths)

	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		sources = append(sources, Source{Name: deviceName(p), Path: p})
	}
	return sources, nil
}

func deviceName(path string) string {
	base := filepath.Base(path)
	m := cardRe.FindStringSubmatch(base)
	if m == nil {
		return base
	}
	id, err := os.ReadFile(filepath.Join("/proc/asound", "card"+m[1], "id"))
	if err != nil {
		return base
	}
	return fmt.Sprintf("%s (%s)", base, strings.TrimSpace(string(id)))
}

// Open starts reading raw bytes from s.
func Open(ctx context.Context, s Source) (io.ReadCloser, error) {
	if s.IsBridge() {
		return dialBridge(ctx, s.Path)
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("opening midi device %s: %w", s.Path, err)
	}
	return f, nil
}
