package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/straja-ai/aidetect/internal/config"
)

func TestNewFromConfig(t *testing.T) {
	a, err := NewFromConfig([]config.APIKeyConfig{
		{Name: "ci", Key: "ci-key-0123456789"},
		{Name: " batch ", Key: "batch-key-0123456789"},
	})
	require.NoError(t, err)
	assert.True(t, a.Enabled())

	c, ok := a.Lookup("batch-key-0123456789")
	require.True(t, ok)
	assert.Equal(t, "batch", c.Name)

	_, ok = a.Lookup("nope")
	assert.False(t, ok)
	_, ok = a.Lookup("")
	assert.False(t, ok)
}

func TestNewFromConfigRejects(t *testing.T) {
	cases := map[string][]config.APIKeyConfig{
		"empty name": {{Name: "", Key: "k"}},
		"empty key":  {{Name: "ci", Key: ""}},
		"duplicate":  {{Name: "a", Key: "same"}, {Name: "b", Key: "same"}},
	}
	for name, keys := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewFromConfig(keys)
			require.Error(t, err)
		})
	}
}

func TestDisabled(t *testing.T) {
	a, err := NewFromConfig(nil)
	require.NoError(t, err)
	assert.False(t, a.Enabled())

	var nilAuth *Auth
	assert.False(t, nilAuth.Enabled())
	_, ok := nilAuth.Lookup("x")
	assert.False(t, ok)
}

func TestParseBearerToken(t *testing.T) {
	token, ok := ParseBearerToken("Bearer abc123")
	require.True(t, ok)
	assert.Equal(t, "abc123", token)

	token, ok = ParseBearerToken("bearer xyz")
	require.True(t, ok)
	assert.Equal(t, "xyz", token)

	for _, h := range []string{"", "abc123", "Bearer", "Bearer ", "Token abc123", "Bearer abc def"} {
		token, ok := ParseBearerToken(h)
		assert.False(t, ok, h)
		assert.Empty(t, token, h)
	}
}
