package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/grovetools/extcore/command"
	"github.com/grovetools/extcore/logging"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

// Built-in listener kinds.
const (
	KindLog  = "log"
	KindExec = "exec"
)

// Constructor builds the listener described by d.
type Constructor func(d Descriptor) (Listener, error)

// Factory turns configuration into listeners, keyed by Descriptor.Kind.
type Factory struct {
	mu    sync.RWMutex
	kinds map[string]Constructor

	logger  *logrus.Entry
	builder *command.SafeBuilder
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithFactoryLogger sets the logger log listeners write to.
func WithFactoryLogger(logger *logrus.Entry) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithCommandBuilder sets the builder exec listeners run their commands with.
func WithCommandBuilder(builder *command.SafeBuilder) FactoryOption {
	return func(f *Factory) {
		f.builder = builder
	}
}

// NewFactory creates a factory with the built-in kinds registered.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		kinds:   make(map[string]Constructor),
		logger:  logging.NewLogger("events"),
		builder: command.NewSafeBuilder(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.Register(KindLog, f.newLogListener)
	f.Register(KindExec, f.newExecListener)
	return f
}

// Register adds or replaces the constructor for kind.
func (f *Factory) Register(kind string, c Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds[kind] = c
}

// Kinds returns the registered kinds, sorted.
func (f *Factory) Kinds() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	kinds := make([]string, 0, len(f.kinds))
	for k := range f.kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Build constructs the listener for d.
func (f *Factory) Build(d Descriptor) (Listener, error) {
	f.mu.RLock()
	c, ok := f.kinds[d.Kind]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown listener kind %q", d.Kind)
	}
	l, err := c(d)
	if err != nil {
		return nil, err
	}
	if l == nil {
		return nil, fmt.Errorf("kind %q returned no listener", d.Kind)
	}
	return l, nil
}

// decodeOptions decodes descriptor options into target using yaml tags.
func decodeOptions(options map[string]any, target interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}
	if err := decoder.Decode(options); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

// LogOptions configures a log listener.
type LogOptions struct {
	Level   string   `yaml:"level"`
	Message string   `yaml:"message"`
	Fields  []string `yaml:"fields"`
}

type logListener struct {
	logger  *logrus.Entry
	level   logrus.Level
	message string
	fields  []string
}

func (f *Factory) newLogListener(d Descriptor) (Listener, error) {
	opts := LogOptions{Level: "info"}
	if err := decodeOptions(d.Options, &opts); err != nil {
		return nil, err
	}
	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	return &logListener{
		logger:  f.logger.WithField("listener", d.Name),
		level:   level,
		message: opts.Message,
		fields:  opts.Fields,
	}, nil
}

func (l *logListener) HandleEvent(_ context.Context, ev *Event) error {
	fields := logrus.Fields{"event": ev.Name}
	if len(l.fields) == 0 {
		for k, v := range ev.Payload {
			fields[k] = v
		}
	} else {
		for _, k := range l.fields {
			if v, ok := ev.Payload[k]; ok {
				fields[k] = v
			}
		}
	}

	msg := l.message
	if msg == "" {
		msg = "Event received"
	}
	l.logger.WithFields(fields).Log(l.level, msg)
	return nil
}

// ExecOptions configures an exec listener.
type ExecOptions struct {
	Command     []string `yaml:"command"`
	TimeoutMS   int      `yaml:"timeout_ms"`
	PassPayload bool     `yaml:"pass_payload"`
}

type execListener struct {
	name    string
	cmd     []string
	timeout time.Duration
	payload bool
	builder *command.SafeBuilder
}

func (f *Factory) newExecListener(d Descriptor) (Listener, error) {
	var opts ExecOptions
	if err := decodeOptions(d.Options, &opts); err != nil {
		return nil, err
	}
	if len(opts.Command) == 0 {
		return nil, fmt.Errorf("exec listener requires a command")
	}
	if err := f.builder.Validate("listenerName", d.Name); err != nil {
		return nil, err
	}
	l := &execListener{
		name:    d.Name,
		cmd:     opts.Command,
		payload: opts.PassPayload,
		builder: f.builder,
	}
	if opts.TimeoutMS > 0 {
		l.timeout = time.Duration(opts.TimeoutMS) * time.Millisecond
	}
	return l, nil
}

// HandleEvent runs the command with the event name in EXTCORE_EVENT and,
// when configured, the JSON encoded event on stdin.
func (l *execListener) HandleEvent(ctx context.Context, ev *Event) error {
	if err := l.builder.Validate("eventName", ev.Name); err != nil {
		return err
	}
	cmd, err := l.builder.Build(l.cmd[0], l.cmd[1:]...)
	if err != nil {
		return err
	}
	cmd.WithEnv("EXTCORE_EVENT="+ev.Name, "EXTCORE_LISTENER="+l.name)
	if l.timeout > 0 {
		cmd.WithTimeout(l.timeout)
	}
	if l.payload {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		cmd.WithStdin(bytes.NewReader(data))
	}
	_, err = cmd.Run(ctx)
	return err
}
