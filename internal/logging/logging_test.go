package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level, format string
		debug, warn   bool
	}{
		{"debug", "json", true, true},
		{"info", "console", false, true},
		{"WARN", "", false, true},
		{"error", "json", false, false},
		{"", "", false, true},
	}

	for _, tt := range tests {
		l, err := New(tt.level, tt.format)
		require.NoError(t, err, tt.level)
		assert.Equal(t, tt.debug, l.Core().Enabled(zap.DebugLevel), tt.level)
		assert.Equal(t, tt.warn, l.Core().Enabled(zap.WarnLevel), tt.level)
	}
}

func TestNewRejectsUnknown(t *testing.T) {
	t.Parallel()

	_, err := New("loud", "json")
	assert.Error(t, err)

	_, err = New("info", "xml")
	assert.Error(t, err)
}
