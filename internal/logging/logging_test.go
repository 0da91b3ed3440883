package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	lvl, ok := parseLevel(" Warning ")
	require.True(t, ok)
	assert.Equal(t, zapcore.WarnLevel, *lvl)

	lvl, ok = parseLevel("off")
	assert.True(t, ok)
	assert.Nil(t, lvl)

	_, ok = parseLevel("chatty")
	assert.False(t, ok)
	_, ok = parseLevel("")
	assert.False(t, ok)
}

func TestNewHonorsEnvLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	log, err := New(ProfileRuntime)
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.WarnLevel))
	assert.True(t, log.Core().Enabled(zapcore.ErrorLevel))
}

func TestNewProfiles(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	log, err := New(ProfileTest)
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = New(ProfileRuntime)
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))

	t.Setenv(EnvLogLevel, "off")
	log, err = New(ProfileCLI)
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.ErrorLevel))
}
