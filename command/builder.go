package command

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the default command execution timeout
	DefaultTimeout = 2 * time.Minute

	// MaxTimeout is the maximum allowed timeout
	MaxTimeout = 10 * time.Minute
)

var (
	validListenerName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)
	validEventName    = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_.:-]*$`)
)

// SafeBuilder provides secure command execution with validation
type SafeBuilder struct {
	defaultTimeout time.Duration
	validators     map[string]func(string) error
}

// NewSafeBuilder creates a new SafeBuilder instance
func NewSafeBuilder() *SafeBuilder {
	return &SafeBuilder{
		defaultTimeout: DefaultTimeout,
		validators:     makeDefaultValidators(),
	}
}

// WithDefaultTimeout changes the timeout applied to commands built afterwards.
func (sb *SafeBuilder) WithDefaultTimeout(timeout time.Duration) *SafeBuilder {
	if timeout > 0 {
		sb.defaultTimeout = clampTimeout(timeout)
	}
	return sb
}

// makeDefaultValidators returns the default set of validators
func makeDefaultValidators() map[string]func(string) error {
	return map[string]func(string) error{
		"listenerName": validateListenerName,
		"eventName":    validateEventName,
		"modulePath":   validateModulePath,
	}
}

// validateListenerName ensures listener names are safe to pass as arguments
func validateListenerName(name string) error {
	if name == "" {
		return fmt.Errorf("listener name cannot be empty")
	}
	if !validListenerName.MatchString(name) {
		return fmt.Errorf("invalid listener name: %s", name)
	}
	return nil
}

// validateEventName ensures event names are safe to pass as arguments
func validateEventName(name string) error {
	if name == "" {
		return fmt.Errorf("event name cannot be empty")
	}
	if !validEventName.MatchString(name) {
		return fmt.Errorf("invalid event name: %s", name)
	}
	return nil
}

// validateModulePath ensures module paths are safe
func validateModulePath(path string) error {
	if path == "" {
		return fmt.Errorf("module path cannot be empty")
	}

	// Prevent command injection via shell metacharacters
	if strings.ContainsAny(path, ";|&$`\n") {
		return fmt.Errorf("module path contains invalid characters")
	}

	return nil
}

// Command represents a safe command configuration
type Command struct {
	name    string
	args    []string
	env     []string
	dir     string
	stdin   io.Reader
	timeout time.Duration
}

// Build creates a new command with validation
func (sb *SafeBuilder) Build(name string, args ...string) (*Command, error) {
	if name == "" {
		return nil, fmt.Errorf("command name cannot be empty")
	}
	if strings.ContainsAny(name, ";|&$`\n") {
		return nil, fmt.Errorf("command name contains invalid characters: %s", name)
	}

	return &Command{
		name:    name,
		args:    append([]string(nil), args...),
		timeout: sb.defaultTimeout,
	}, nil
}

// Validate validates specific arguments
func (sb *SafeBuilder) Validate(argType string, value string) error {
	validator, exists := sb.validators[argType]
	if !exists {
		return fmt.Errorf("no validator for argument type: %s", argType)
	}

	return validator(value)
}

// WithTimeout sets a custom timeout for the command
func (c *Command) WithTimeout(timeout time.Duration) *Command {
	c.timeout = clampTimeout(timeout)
	return c
}

// WithEnv appends KEY=VALUE pairs to the inherited environment.
func (c *Command) WithEnv(kv ...string) *Command {
	c.env = append(c.env, kv...)
	return c
}

// WithDir sets the working directory.
func (c *Command) WithDir(dir string) *Command {
	c.dir = dir
	return c
}

// WithStdin feeds r to the command's standard input.
func (c *Command) WithStdin(r io.Reader) *Command {
	c.stdin = r
	return c
}

// String renders the command line for logs.
func (c *Command) String() string {
	return strings.TrimSpace(c.name + " " + strings.Join(c.args, " "))
}

// Run executes the command bounded by its timeout and returns the combined output.
func (c *Command) Run(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.name, c.args...) //nolint:gosec // SafeBuilder provides validation
	if c.dir != "" {
		cmd.Dir = c.dir
	}
	if len(c.env) > 0 {
		cmd.Env = append(cmd.Environ(), c.env...)
	}
	if c.stdin != nil {
		cmd.Stdin = c.stdin
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return out.Bytes(), fmt.Errorf("%s timed out after %s", c.name, c.timeout)
		}
		return out.Bytes(), fmt.Errorf("%s: %w: %s", c.name, err, strings.TrimSpace(out.String()))
	}
	return out.Bytes(), nil
}

func clampTimeout(timeout time.Duration) time.Duration {
	if timeout > MaxTimeout {
		return MaxTimeout
	}
	return timeout
}
