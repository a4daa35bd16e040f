package logger

import (
	"testing"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LogConfig
		wantErr bool
	}{
		{"json", config.LogConfig{Level: "info", Format: "json", OutputPath: "stdout"}, false},
		{"console", config.LogConfig{Level: "debug", Format: "console", OutputPath: "stderr"}, false},
		{"bad level", config.LogConfig{Level: "loud", Format: "json", OutputPath: "stdout"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			log.Debug("logger ready")
		})
	}
}
