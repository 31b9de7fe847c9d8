package vm

import (
	"fmt"
	"strings"
)

// RuntimeError is returned by Run when the dispatch loop hits a fault it
// cannot recover from: a type mismatch, an undefined variable, stack
// overflow, or similar. StackTrace mirrors clox's runtimeError(), which
// walks frames from innermost to outermost printing "[line N] in NAME".
type RuntimeError struct {
	Message    string
	StackTrace []string
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, frame := range e.StackTrace {
		b.WriteByte('\n')
		b.WriteString(frame)
	}
	return b.String()
}

func newRuntimeError(message string, trace []string) *RuntimeError {
	return &RuntimeError{Message: message, StackTrace: trace}
}

func runtimeErrorf(trace []string, format string, args ...interface{}) *RuntimeError {
	return newRuntimeError(fmt.Sprintf(format, args...), trace)
}
