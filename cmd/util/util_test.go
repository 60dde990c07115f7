package util

import (
	"strings"
	"testing"

	"github.com/ValentinKolb/dStmt/lib/statement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTopic(t *testing.T) {
	raw := statement.TopicFromString("weather")

	assert.Equal(t, raw, ParseTopic(raw.String()))
	assert.Equal(t, raw, ParseTopic("0x"+raw.String()))
	assert.Equal(t, raw, ParseTopic("weather"))
	assert.NotEqual(t, raw, ParseTopic("Weather"))
}

func TestParseTopics(t *testing.T) {
	topics, err := ParseTopics([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []statement.Topic{statement.TopicFromString("a"), statement.TopicFromString("b")}, topics)

	topics, err = ParseTopics(nil)
	require.NoError(t, err)
	assert.Empty(t, topics)

	_, err = ParseTopics([]string{"a", "b", "c", "d", "e"})
	assert.Error(t, err)
}

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 40)
	for _, line := range strings.Split(WrapString(text), "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "short text", WrapString("  short   text "))
}
