package server

import (
	"context"
	"errors"
	"log/slog"

	"tangled.sh/cuesheet/hub"
	"tangled.sh/cuesheet/log"
	"tangled.sh/cuesheet/midi"
	"tangled.sh/cuesheet/server/config"
	"tangled.sh/cuesheet/timecode"
)

// timeSource is the running time source together with how it is reported
// to clients.
type timeSource struct {
	timecode.Source
	status hub.Status
}

// discover resolves the configured source setting to the MIDI sources to
// try. "none" and an empty device list both yield nothing.
func discover(cfg config.Timecode) ([]midi.Source, error) {
	switch cfg.Source {
	case "none":
		return nil, nil
	case "", "auto":
		return midi.ListSources(cfg.DeviceGlob)
	}
	return []midi.Source{midi.SourceFor(cfg.Source)}, nil
}

func startClock(ctx context.Context, cfg config.Timecode, l *slog.Logger, emit func(timecode.Timecode), portCount int) (*timeSource, error) {
	start, err := cfg.StartTimecode()
	if err != nil {
		return nil, err
	}

	clock := timecode.NewClock(start, log.SubLogger(l, "clock"))
	if err := clock.Start(ctx, emit); err != nil {
		return nil, err
	}
	return &timeSource{
		Source: clock,
		status: hub.Status{
			PortCount:  portCount,
			SourceKind: timecode.Synthetic,
		},
	}, nil
}

// startTimeSource runs the first MIDI source that opens, or the synthetic
// clock when none is configured or none opens. Which one runs is fixed for
// the life of the process.
func startTimeSource(ctx context.Context, cfg config.Timecode, l *slog.Logger, opener midi.Opener, emit func(timecode.Timecode)) (*timeSource, error) {
	sources, err := discover(cfg)
	if err != nil {
		return nil, err
	}

	for _, s := range sources {
		ts := midi.NewTimecodeSource(midi.TimecodeSourceConfig{
			Source: s,
			Policy: cfg.Policy(),
			Logger: log.SubLogger(l, "midi"),
			Opener: opener,
		})
		err := ts.Start(ctx, emit)
		if errors.Is(err, midi.ErrNoSources) {
			l.Warn("midi source unavailable", "source", s.Name, "err", err)
			continue
		}
		if err != nil {
			return nil, err
		}

		l.Info("using midi timecode", "source", s.Name, "ports", len(sources))
		return &timeSource{
			Source: ts,
			status: hub.Status{
				SourceAvailable: true,
				PortCount:       len(sources),
				SourceKind:      timecode.External,
				SourceName:      s.Name,
			},
		}, nil
	}

	l.Info("no midi timecode source, using synthetic clock", "setting", cfg.Source, "ports", len(sources))
	return startClock(ctx, cfg, l, emit, len(sources))
}
