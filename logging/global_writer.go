package logging

import (
	"io"
	"os"
	"sync/atomic"
)

// sink is the terminal destination shared by every component logger.
// Swapping it takes effect for all loggers without reconfiguring them.
type sink struct {
	dst atomic.Pointer[writerRef]
}

type writerRef struct{ io.Writer }

func (s *sink) Write(p []byte) (int, error) {
	return s.dst.Load().Write(p)
}

var terminal = newSink(os.Stderr)

func newSink(w io.Writer) *sink {
	s := &sink{}
	s.dst.Store(&writerRef{w})
	return s
}

// SetGlobalOutput redirects the terminal output of all component loggers.
func SetGlobalOutput(w io.Writer) {
	terminal.dst.Store(&writerRef{w})
}

// GetGlobalOutput returns the shared terminal writer.
func GetGlobalOutput() io.Writer {
	return terminal
}
