package app

import (
	"testing"
)

func TestParseCommand_DefaultsToServe(t *testing.T) {
	cmd := ParseCommand([]string{})
	if cmd != CommandServe {
		t.Errorf("ParseCommand([]) = %q, want %q", cmd, CommandServe)
	}
}

func TestParseCommand_KnownCommands(t *testing.T) {
	tests := []struct {
		arg  string
		want Command
	}{
		{"serve", CommandServe},
		{"worker", CommandWorker},
		{"fetch", CommandFetch},
		{"migrate", CommandMigrate},
		{"healthcheck", CommandHealthcheck},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			if cmd := ParseCommand([]string{tt.arg}); cmd != tt.want {
				t.Errorf("ParseCommand([%s]) = %q, want %q", tt.arg, cmd, tt.want)
			}
		})
	}
}

func TestParseCommand_UnknownDefaultsToServe(t *testing.T) {
	cmd := ParseCommand([]string{"unknown"})
	if cmd != CommandServe {
		t.Errorf("ParseCommand([unknown]) = %q, want %q", cmd, CommandServe)
	}
}

func TestParseCommand_IgnoresExtraArgs(t *testing.T) {
	cmd := ParseCommand([]string{"worker", "--flag", "value"})
	if cmd != CommandWorker {
		t.Errorf("ParseCommand([worker --flag value]) = %q, want %q", cmd, CommandWorker)
	}
}
