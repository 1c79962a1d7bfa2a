package utilities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccountID_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := NewAccountID()
		require.NotEmpty(t, id)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestNewRecordID_Length(t *testing.T) {
	id := NewRecordID()
	assert.Len(t, id, 27)
	assert.NotEqual(t, id, NewRecordID())
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"debug", "debug"},
		{"WARN", "warn"},
		{"warning", "warn"},
		{"error", "error"},
		{"", "info"},
		{"bogus", "info"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, levelFromString(tt.in).String())
		})
	}
}

func TestInit_WithRotatedFile(t *testing.T) {
	cfg := Config{Level: "info", File: t.TempDir() + "/auth.log", MaxAge: 24 * time.Hour, Rotation: time.Hour}
	lg, err := Init(cfg)
	require.NoError(t, err)
	lg.Info("hello")
	_ = lg.Sync()
}
