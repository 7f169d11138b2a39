package casa

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
)

// ErrCASA is returned when the CASA process fails.
var ErrCASA = errors.New("casa: process failed")

// Runner executes a CASA script in dir, streaming the process output to
// out.
type Runner interface {
	Run(ctx context.Context, dir, script string, out io.Writer) error
}

// ExecRunner runs scripts through a CASA executable.
type ExecRunner struct {
	Executable string
	// Args precede "-c <script>". Defaults to a batch session without the
	// logger GUI.
	Args []string
}

// NewExecRunner returns an ExecRunner for the given executable.
func NewExecRunner(executable string) *ExecRunner {
	if executable == "" {
		executable = "casa"
	}
	return &ExecRunner{Executable: executable, Args: []string{"--nologger", "--nogui", "--log2term"}}
}

// Run writes script to a temporary file in dir and executes it. The
// process is killed when ctx is cancelled.
func (r *ExecRunner) Run(ctx context.Context, dir, script string, out io.Writer) error {
	f, err := os.CreateTemp(dir, "m33_casa_*.py")
	if err != nil {
		return fmt.Errorf("casa: script: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)
	if _, err := io.WriteString(f, script); err != nil {
		f.Close()
		return fmt.Errorf("casa: script: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("casa: script: %w", err)
	}

	args := append(append([]string(nil), r.Args...), "-c", filepath.Base(path))
	cmd := exec.CommandContext(ctx, r.Executable, args...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	if out == nil {
		out = io.Discard
	}
	cmd.Stdout = out
	cmd.Stderr = io.MultiWriter(out, &stderr)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v: %s", ErrCASA, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}

// lineWriter splits a byte stream into lines and hands each complete line
// to fn. It is safe for the concurrent stdout/stderr writes of exec.
type lineWriter struct {
	mu  sync.Mutex
	buf []byte
	fn  func(string)
}

func newLineWriter(fn func(string)) *lineWriter {
	return &lineWriter{fn: fn}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.fn(string(bytes.TrimRight(w.buf[:i], "\r")))
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush emits a trailing partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.fn(string(w.buf))
		w.buf = nil
	}
}
