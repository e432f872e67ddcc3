package nn

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger_NilRestoresDefault(t *testing.T) {
	logs := captureLog(t)
	Logger().Info("routed")
	assert.Contains(t, logs.String(), "routed")

	SetLogger(nil)
	assert.Same(t, slog.Default(), Logger())
}
