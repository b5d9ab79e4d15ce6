package basic

import (
	"errors"
	"strings"
	"testing"

	"github.com/antibyte/retrobasic/pkg/shared"
)

// runSource loads and runs a program to completion and returns the
// interpreter for inspection. A fault fails the test.
func runSource(t *testing.T, source string) *Interpreter {
	t.Helper()
	return runOn(t, New(nil), source)
}

func runOn(t *testing.T, ip *Interpreter, source string) *Interpreter {
	t.Helper()
	driveToEnd(t, ip, source)
	if ip.State() == StateFaulted {
		code, line := ip.LastError()
		t.Fatalf("program faulted with code %d in line %d", code, line)
	}
	return ip
}

// runFaulting runs a program that is expected to end in a fault; assertions
// on the code go through wantFault.
func runFaulting(t *testing.T, source string) *Interpreter {
	t.Helper()
	return runFaultingOn(t, New(nil), source)
}

func runFaultingOn(t *testing.T, ip *Interpreter, source string) *Interpreter {
	t.Helper()
	driveToEnd(t, ip, source)
	if ip.State() != StateFaulted {
		t.Fatalf("expected a fault, program ended in state %d", ip.State())
	}
	return ip
}

func driveToEnd(t *testing.T, ip *Interpreter, source string) {
	t.Helper()
	if err := ip.LoadProgram(source); err != nil {
		t.Fatalf("LoadProgram: %v", err)
	}
	if err := ip.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 1000; i++ {
		switch ip.RunBatch(0) {
		case StateFinished, StateFaulted:
			return
		case StateAwaitInput:
			t.Fatalf("program unexpectedly waits for input")
		}
	}
	t.Fatalf("program did not finish")
}

func numVar(t *testing.T, ip *Interpreter, name string) float64 {
	t.Helper()
	v := ip.Variable(name)
	if !v.IsNumeric() {
		t.Fatalf("variable %s is not numeric (kind %d)", name, v.Kind)
	}
	return v.Num
}

func strVar(t *testing.T, ip *Interpreter, name string) string {
	t.Helper()
	v := ip.Variable(name)
	if v.Kind != KindString {
		t.Fatalf("variable %s is not a string (kind %d)", name, v.Kind)
	}
	return v.Str
}

func wantFault(t *testing.T, ip *Interpreter, code int) {
	t.Helper()
	if ip.State() != StateFaulted {
		t.Fatalf("expected faulted state, got %d", ip.State())
	}
	got, _ := ip.LastError()
	if got != code {
		t.Fatalf("expected fault code %d, got %d", code, got)
	}
}

// drainText collects the text output queued so far.
func drainText(ip *Interpreter) []string {
	var lines []string
	for {
		select {
		case msg := <-ip.OutputChan:
			if msg.Type == shared.MessageTypeText {
				lines = append(lines, msg.Content)
			}
		default:
			return lines
		}
	}
}

// fakeFS is an in-memory FileSystem for file statement and CHAIN tests.
type fakeFS struct {
	files map[string]string
}

func newFakeFS() *fakeFS {
	return &fakeFS{files: make(map[string]string)}
}

func (f *fakeFS) ReadFile(path, sessionID string) (string, error) {
	content, ok := f.files[strings.ToUpper(path)]
	if !ok {
		return "", errors.New("not found")
	}
	return content, nil
}

func (f *fakeFS) WriteFile(path, content, sessionID string) error {
	f.files[strings.ToUpper(path)] = content
	return nil
}

func (f *fakeFS) Exists(path, sessionID string) bool {
	_, ok := f.files[strings.ToUpper(path)]
	return ok
}
