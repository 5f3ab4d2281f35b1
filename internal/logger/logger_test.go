package logger

import (
	"testing"

	"github.com/bitfantasy/nimo-hr/internal/config"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LogConfig
		enabled zap.AtomicLevel
		wantErr bool
	}{
		{"json warn", config.LogConfig{Format: "json", Level: "warn"}, zap.NewAtomicLevelAt(zap.WarnLevel), false},
		{"console default", config.LogConfig{Format: "console"}, zap.NewAtomicLevelAt(zap.DebugLevel), false},
		{"bad level", config.LogConfig{Level: "loud"}, zap.AtomicLevel{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			want := tt.enabled.Level()
			if !l.Core().Enabled(want) || (want > zap.DebugLevel && l.Core().Enabled(want-1)) {
				t.Errorf("level %s not applied", want)
			}
		})
	}
}
