package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "inkwell-test"})

	siteLog := WithComponent("site")
	siteLog.Info().Str("event", "site.built").Msg("rendered site")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "inkwell-test", line["service"])
	assert.Equal(t, "site", line["component"])
	assert.Equal(t, "site.built", line["event"])
	assert.Equal(t, "info", line["level"])
	assert.Contains(t, line, "time")

	// Later calls keep the first configuration.
	var other bytes.Buffer
	Configure(Config{Output: &other})
	base := Base()
	base.Debug().Msg("still here")
	assert.Zero(t, other.Len())
	assert.Contains(t, buf.String(), "still here")
}
