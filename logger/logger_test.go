package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestComponentTagsEveryLine(t *testing.T) {
	var buf bytes.Buffer
	log := Component(zerolog.New(&buf), "relay_submitter")

	log.Info().Msg("first")
	log.Warn().Msg("second")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	assert.Len(t, lines, 2)
	for _, line := range lines {
		assert.Contains(t, string(line), `"component":"relay_submitter"`)
	}
}
