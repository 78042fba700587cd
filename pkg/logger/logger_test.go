package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	for _, mode := range []string{"dev", "prod", "PRODUCTION", ""} {
		t.Run(mode, func(t *testing.T) {
			log, err := New(mode)
			require.NoError(t, err)
			assert.NotNil(t, log.SugaredLogger)
		})
	}
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := &Logger{SugaredLogger: zap.New(core).Sugar()}

	log.With("spectrum", "scan 7").Warn("no model", "task", "PMC2")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "no model", entry.Message)
	assert.Equal(t, map[string]interface{}{"spectrum": "scan 7", "task": "PMC2"}, entry.ContextMap())
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Info("discarded", "k", 1)
	log.Sync()
}
