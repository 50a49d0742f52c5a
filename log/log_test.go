package log

import (
	"context"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	defer SetLevel("info")

	assert.True(t, SetLevel(" DEBUG "))
	assert.Equal(t, log.DebugLevel, level)
	assert.False(t, SetLevel("loud"))
	assert.Equal(t, log.DebugLevel, level)
}

func TestSubLogger(t *testing.T) {
	sub := SubLogger(New("cuesheet"), "hub")
	cl, ok := sub.Handler().(*log.Logger)
	require.True(t, ok)
	assert.Equal(t, "cuesheet/hub", cl.GetPrefix())

	d := Discard()
	assert.NotNil(t, SubLogger(d, "hub"))
}

func TestContext(t *testing.T) {
	l := New("test")
	ctx := IntoContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}
