package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterRoute(t *testing.T) {
	r := NewRouter(map[string]string{"openai": "a", "ollama": "b"}, "openai")

	got, err := r.Route("ollama")
	require.NoError(t, err)
	assert.Equal(t, "b", got)

	got, err = r.Route("unknown")
	require.NoError(t, err)
	assert.Equal(t, "a", got, "unknown engine falls back to the default")

	assert.True(t, r.Has("openai"))
	assert.False(t, r.Has("gemini"))
	assert.ElementsMatch(t, []string{"openai", "ollama"}, r.Engines())
}

func TestRouterNoBackends(t *testing.T) {
	r := NewRouter(map[string]string{}, "openai")
	_, err := r.Route("openai")
	assert.Error(t, err)
}
