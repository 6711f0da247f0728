package command

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestValidateListenerName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid name", "audit", false},
		{"valid with dots", "audit.v2", false},
		{"valid with underscore", "module_audit", false},
		{"empty name", "", true},
		{"starts with hyphen", "-audit", true},
		{"spaces", "my audit", true},
		{"command injection", "audit;rm", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateListenerName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateListenerName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateEventName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid name", "moduleInstalled", false},
		{"namespaced", "module:installed", false},
		{"empty name", "", true},
		{"starts with digit", "1event", true},
		{"command injection", "ev$(id)", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateEventName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateEventName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateModulePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"absolute path", "/srv/modules/a.zip", false},
		{"relative path", "modules/a.jar", false},
		{"command injection semicolon", "a.zip; rm -rf /", true},
		{"command injection pipe", "a.zip | cat", true},
		{"command injection dollar", "$(whoami)", true},
		{"command injection backtick", "`whoami`", true},
		{"empty path", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateModulePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateModulePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestSafeBuilder_Build(t *testing.T) {
	sb := NewSafeBuilder()

	t.Run("valid command", func(t *testing.T) {
		cmd, err := sb.Build("echo", "hello")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cmd.name != "echo" {
			t.Errorf("expected command name 'echo', got %q", cmd.name)
		}
		if len(cmd.args) != 1 || cmd.args[0] != "hello" {
			t.Errorf("expected args ['hello'], got %v", cmd.args)
		}
		if cmd.timeout != DefaultTimeout {
			t.Errorf("expected default timeout, got %v", cmd.timeout)
		}
	})

	t.Run("empty command name", func(t *testing.T) {
		if _, err := sb.Build(""); err == nil {
			t.Error("expected error for empty command name")
		}
	})

	t.Run("shell metacharacters in name", func(t *testing.T) {
		if _, err := sb.Build("echo;id"); err == nil {
			t.Error("expected error for command name with metacharacters")
		}
	})

	t.Run("args are copied", func(t *testing.T) {
		args := []string{"a"}
		cmd, err := sb.Build("echo", args...)
		if err != nil {
			t.Fatal(err)
		}
		args[0] = "b"
		if cmd.args[0] != "a" {
			t.Errorf("builder kept a reference to the caller's args")
		}
	})
}

func TestSafeBuilder_Validate(t *testing.T) {
	sb := NewSafeBuilder()

	t.Run("valid module path", func(t *testing.T) {
		if err := sb.Validate("modulePath", "/m/a.zip"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("invalid event name", func(t *testing.T) {
		if err := sb.Validate("eventName", "bad name"); err == nil {
			t.Error("expected error for invalid event name")
		}
	})

	t.Run("unknown validator type", func(t *testing.T) {
		if err := sb.Validate("unknownType", "value"); err == nil {
			t.Error("expected error for unknown validator type")
		}
	})
}

func TestCommand_WithTimeout(t *testing.T) {
	sb := NewSafeBuilder()

	cmd, err := sb.Build("sleep", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("custom timeout", func(t *testing.T) {
		customTimeout := 1 * time.Second
		cmd = cmd.WithTimeout(customTimeout)
		if cmd.timeout != customTimeout {
			t.Errorf("expected timeout %v, got %v", customTimeout, cmd.timeout)
		}
	})

	t.Run("exceeds max timeout", func(t *testing.T) {
		cmd = cmd.WithTimeout(20 * time.Minute)
		if cmd.timeout != MaxTimeout {
			t.Errorf("expected timeout to be capped at %v, got %v", MaxTimeout, cmd.timeout)
		}
	})

	t.Run("builder default", func(t *testing.T) {
		c, _ := NewSafeBuilder().WithDefaultTimeout(3*time.Second).Build("true")
		if c.timeout != 3*time.Second {
			t.Errorf("expected builder default to apply, got %v", c.timeout)
		}
	})
}

func TestCommandRun(t *testing.T) {
	sb := NewSafeBuilder()

	cmd, err := sb.Build("sh", "-c", `printf "%s" "$EXTCORE_EVENT"`)
	if err != nil {
		t.Fatal(err)
	}
	out, err := cmd.WithEnv("EXTCORE_EVENT=moduleInstalled").Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "moduleInstalled" {
		t.Errorf("expected env to reach the command, got %q", out)
	}
}

func TestCommandRunFailure(t *testing.T) {
	cmd, err := NewSafeBuilder().Build("sh", "-c", "echo boom >&2; exit 3")
	if err != nil {
		t.Fatal(err)
	}
	_, err = cmd.Run(context.Background())
	if err == nil {
		t.Fatal("expected error for failing command")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected output in error, got %v", err)
	}
}

func TestCommandTimeout(t *testing.T) {
	sb := NewSafeBuilder()

	// Create a command that will timeout
	cmd, err := sb.Build("sleep", "10")
	if err != nil {
		t.Fatal(err)
	}

	// Set a short timeout
	cmd = cmd.WithTimeout(100 * time.Millisecond)

	start := time.Now()
	_, err = cmd.Run(context.Background())
	duration := time.Since(start)

	if err == nil {
		t.Error("expected timeout error")
	}

	// Allow some margin for execution overhead
	if duration > 500*time.Millisecond {
		t.Errorf("command took too long to timeout: %v", duration)
	}
}
