package midi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"tangled.sh/cuesheet/timecode"
)

type Opener func(ctx context.Context, s Source) (io.ReadCloser, error)

type TimecodeSourceConfig struct {
	Source Source
	Policy timecode.SequencePolicy
	Logger *slog.Logger
	// Opener defaults to Open.
	Opener           Opener
	StartAttempts    uint
	RetryInterval    time.Duration
	MaxRetryInterval time.Duration
}

// TimecodeSource decodes MTC from a MIDI source. Reads that fail after a
// successful start are retried with backoff until Stop.
type TimecodeSource struct {
	cfg TimecodeSourceConfig
	l   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ timecode.Source = (*TimecodeSource)(nil)

func NewTimecodeSource(cfg TimecodeSourceConfig) *TimecodeSource {
	if cfg.Opener == nil {
		cfg.Opener = Open
	}
	if cfg.StartAttempts == 0 {
		cfg.StartAttempts = 3
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}
	if cfg.MaxRetryInterval == 0 {
		cfg.MaxRetryInterval = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &TimecodeSource{cfg: cfg, l: cfg.Logger.With("source", cfg.Source.Name)}
}

func (t *TimecodeSource) Kind() timecode.Kind {
	return timecode.External
}

func (t *TimecodeSource) Source() Source {
	return t.cfg.Source
}

func (t *TimecodeSource) open(ctx context.Context, attempts uint) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := retry.Do(func() error {
		r, err := t.cfg.Opener(ctx, t.cfg.Source)
		if err != nil {
			return err
		}
		rc = r
		return nil
	},
		retry.Attempts(attempts),
		retry.DelayType(retry.BackOffDelay),
		retry.Delay(t.cfg.RetryInterval),
		retry.MaxDelay(t.cfg.MaxRetryInterval),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			t.l.Info("retrying midi source", "attempt", n+1, "err", err)
		}),
		retry.Context(ctx),
	)
	return rc, err
}

// Start opens the source, failing if it cannot be opened within
// StartAttempts, then decodes in the background.
func (t *TimecodeSource) Start(ctx context.Context, emit func(timecode.Timecode)) error {
	t.Stop()

	rc, err := t.open(ctx, t.cfg.StartAttempts)
	if err != nil {
		return errors.Join(ErrNoSources, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.mu.Lock()
	t.cancel = cancel
	t.done = done
	t.mu.Unlock()

	t.l.Info("reading midi timecode", "path", t.cfg.Source.Path)

	go func() {
		defer close(done)
		d := timecode.NewDecoder(t.cfg.Policy)
		for {
			err := t.read(ctx, rc, d, emit)
			if ctx.Err() != nil {
				return
			}
			t.l.Warn("midi source lost", "err", err)
			d.Reset()

			// zero attempts retries until the context ends
			rc, err = t.open(ctx, 0)
			if err != nil {
				return
			}
			t.l.Info("midi source reconnected")
		}
	}()

	return nil
}

func (t *TimecodeSource) read(ctx context.Context, rc io.ReadCloser, d *timecode.Decoder, emit func(timecode.Timecode)) error {
	stop := context.AfterFunc(ctx, func() { rc.Close() })
	defer stop()
	defer rc.Close()

	var p Parser
	handle := func(m Message) {
		switch m.Status {
		case StatusQuarterFrame:
			if tc, ok := d.HandleMessage(m.Status, m.Data[0]); ok {
				emit(tc)
			}
		case StatusSysEx:
			if hr, mn, sc, fr, ok := FullFrame(m); ok {
				if tc, ok := d.FullFrame(hr, mn, sc, fr); ok {
					emit(tc)
				}
			}
		}
	}

	buf := make([]byte, 512)
	for {
		n, err := rc.Read(buf)
		if n > 0 {
			p.Feed(buf[:n], handle)
		}
		if err != nil {
			return err
		}
	}
}

func (t *TimecodeSource) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	t.l.Info("stopped midi timecode")
}
