package tags

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

type Tag struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Color string `json:"color" yaml:"color"`
}

// DefaultColor is applied to tags created without one.
const DefaultColor = "#6b7280"

// Store persists the global tag list. Save replaces the whole list.
type Store interface {
	Load(ctx context.Context) ([]Tag, error)
	Save(ctx context.Context, tags []Tag) error
}

// stopper interface for stores holding connections
type Stopper interface {
	Stop()
}

var ErrUnknownProvider = errors.New("unknown tag store provider")

// ensure that we are satisfying the interface
var (
	_ = []Store{
		&FileStore{},
		&SqliteStore{},
		&RedisStore{},
	}
)

// Defaults is the tag list used when nothing has been saved yet, or when
// the configured store cannot be read.
func Defaults() []Tag {
	return []Tag{
		{ID: "lighting", Name: "Lighting", Color: "#f59e0b"},
		{ID: "sound", Name: "Sound", Color: "#3b82f6"},
		{ID: "video", Name: "Video", Color: "#8b5cf6"},
		{ID: "stage", Name: "Stage Management", Color: "#10b981"},
		{ID: "set", Name: "Set", Color: "#a16207"},
		{ID: "props", Name: "Props", Color: "#ec4899"},
		{ID: "costume", Name: "Costume", Color: "#ef4444"},
		{ID: "performance", Name: "Performance", Color: "#14b8a6"},
	}
}

var (
	nonSlug = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slug derives a tag id from a display name: "Follow Spot #2" becomes
// "follow-spot-2". Names with no usable characters give "tag".
func Slug(name string) string {
	s := nonSlug.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "tag"
	}
	return s
}

type Config struct {
	Provider  string
	Path      string
	DBPath    string
	RedisAddr string
	RedisKey  string
}

// Open builds the store named by cfg.Provider.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Provider {
	case "", "file":
		return NewFileStore(cfg.Path), nil
	case "sqlite":
		return NewSQLiteStore(cfg.DBPath)
	case "redis":
		return NewRedisStore(ctx, cfg.RedisAddr, WithKey(cfg.RedisKey))
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
}
