package tags

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = []Tag{
	{ID: "lighting", Name: "Lighting", Color: "#f59e0b"},
	{ID: "follow-spot", Name: "Follow Spot", Color: "#ffffff"},
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Lighting", "lighting"},
		{"Follow Spot #2", "follow-spot-2"},
		{"  --Sound--  ", "sound"},
		{"!!!", "tag"},
		{"", "tag"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.in))
		})
	}
}

func TestDefaultsHaveUniqueIDs(t *testing.T) {
	seen := map[string]bool{}
	for _, tag := range Defaults() {
		assert.False(t, seen[tag.ID], "duplicate id %s", tag.ID)
		seen[tag.ID] = true
		assert.Equal(t, Slug(tag.ID), tag.ID)
	}
}

func TestFileStore(t *testing.T) {
	for _, name := range []string{"tags.json", "tags.yaml", "nested/dir/tags.yml"} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), name)
			s := NewFileStore(path)

			_, err := s.Load(ctx)
			assert.Error(t, err, "missing file must fail so defaults apply")

			require.NoError(t, s.Save(ctx, sample))
			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, sample, got)

			require.NoError(t, s.Save(ctx, nil))
			got, err = s.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestSqliteStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Stop()

	_, err = s.Load(ctx)
	assert.Error(t, err, "never-saved store must fail so defaults apply")

	require.NoError(t, s.Save(ctx, sample))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sample, got)

	reordered := []Tag{sample[1], sample[0]}
	require.NoError(t, s.Save(ctx, reordered))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, reordered, got)

	require.NoError(t, s.Save(ctx, []Tag{}))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSqliteStoreCustomTable(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(":memory:", WithTableName("show_tags"))
	require.NoError(t, err)
	defer s.Stop()

	assert.Equal(t, "show_tags", s.tableName)
	require.NoError(t, s.Save(ctx, sample))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Config{Provider: "file", Path: filepath.Join(t.TempDir(), "tags.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(ctx, Config{Provider: "sqlite", DBPath: ":memory:"})
	require.NoError(t, err)
	assert.IsType(t, &SqliteStore{}, s)
	s.(Stopper).Stop()

	_, err = Open(ctx, Config{Provider: "etcd"})
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = Open(ctx, Config{Provider: "redis", RedisAddr: "127.0.0.1:1"})
	assert.Error(t, err)
}
