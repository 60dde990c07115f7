package common

import (
	"testing"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggersTwice(t *testing.T) {
	require.NoError(t, InitLoggers("error"))
	require.NotPanics(t, func() {
		require.NoError(t, InitLoggers("debug"))
	})

	assert.Error(t, InitLoggers("loud"))
}

func TestParseLogLevel(t *testing.T) {
	lvl, err := ParseLogLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, logger.WARNING, lvl)

	_, err = ParseLogLevel("")
	assert.Error(t, err)
}
