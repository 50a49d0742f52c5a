package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"

	"tangled.sh/cuesheet/tags"
	"tangled.sh/cuesheet/timecode"
)

type Server struct {
	ListenAddr string `env:"LISTEN_ADDR, default=0.0.0.0:3000"`
	StaticDir  string `env:"STATIC_DIR, default=public"`
	Dev        bool   `env:"DEV, default=false"`
	LogLevel   string `env:"LOG_LEVEL, default=info"`
}

type Timecode struct {
	// Source is "auto", "none", a device path or a ws:// bridge URL.
	Source     string `env:"SOURCE, default=auto"`
	DeviceGlob string `env:"DEVICE_GLOB, default=/dev/snd/midiC*D*"`
	FrameRate  string `env:"FRAME_RATE, default=30"`
	ResetOnGap bool   `env:"RESET_ON_GAP, default=true"`
	// Start is where the synthetic clock begins, as hh:mm:ss:ff.
	Start string `env:"START, default=00:00:00:00"`
}

func (t Timecode) Policy() timecode.SequencePolicy {
	if t.ResetOnGap {
		return timecode.ResetOnGap
	}
	return timecode.KeepStale
}

// StartTimecode is the configured start position at the configured rate.
// It seeds the show before any source reports.
func (t Timecode) StartTimecode() (timecode.Timecode, error) {
	rate, err := timecode.ParseFrameRate(t.FrameRate)
	if err != nil {
		return timecode.Timecode{}, fmt.Errorf("invalid frame rate: %w", err)
	}
	start, err := timecode.Parse(t.Start, rate)
	if err != nil {
		return timecode.Timecode{}, fmt.Errorf("invalid start timecode: %w", err)
	}
	return start, nil
}

type Tags struct {
	Provider  string `env:"PROVIDER, default=file"`
	Path      string `env:"PATH, default=tags.json"`
	DBPath    string `env:"DB_PATH, default=cuesheet.db"`
	RedisAddr string `env:"REDIS_ADDR, default=localhost:6379"`
	RedisKey  string `env:"REDIS_KEY"`
}

func (t Tags) StoreConfig() tags.Config {
	return tags.Config{
		Provider:  t.Provider,
		Path:      t.Path,
		DBPath:    t.DBPath,
		RedisAddr: t.RedisAddr,
		RedisKey:  t.RedisKey,
	}
}

type Config struct {
	Server   Server   `env:",prefix=CUESHEET_SERVER_"`
	Timecode Timecode `env:",prefix=CUESHEET_TIMECODE_"`
	Tags     Tags     `env:",prefix=CUESHEET_TAGS_"`
}

func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads the config from l instead of the process environment.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: l,
	})
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
