package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Workers re-exec this binary; the persistent flags must be forwarded so a
// worker loads the same environment file the parent was started with.
func TestServeWorkerArgsForwardPersistentFlags(t *testing.T) {
	origEnvFile, origLogLevel := flagEnvFile, flagLogLevel
	t.Cleanup(func() { flagEnvFile, flagLogLevel = origEnvFile, origLogLevel })

	flagEnvFile = ".env.prod"
	flagLogLevel = ""
	assert.Equal(t, []string{"serve", "--env-file", ".env.prod"}, serveWorkerArgs())

	flagLogLevel = "debug"
	assert.Equal(t,
		[]string{"serve", "--env-file", ".env.prod", "--log-level", "debug"},
		serveWorkerArgs())
}
