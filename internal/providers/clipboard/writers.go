package clipboard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrNoClipboard is returned when no clipboard command is installed.
var ErrNoClipboard = errors.New("no clipboard command found")

// commands are tried in order.
var commands = [][]string{
	{"pbcopy"},
	{"wl-copy"},
	{"xclip", "-selection", "clipboard"},
	{"xsel", "--clipboard", "--input"},
	{"clip.exe"},
}

// CommandWriter pipes text into the system clipboard command.
type CommandWriter struct {
	path string
	args []string
}

// NewCommandWriter finds the first clipboard command on PATH.
func NewCommandWriter() (*CommandWriter, error) {
	return detect(exec.LookPath)
}

func detect(lookPath func(string) (string, error)) (*CommandWriter, error) {
	for _, c := range commands {
		if p, err := lookPath(c[0]); err == nil {
			return &CommandWriter{path: p, args: c[1:]}, nil
		}
	}
	return nil, ErrNoClipboard
}

func (w *CommandWriter) Name() string { return filepath.Base(w.path) }

func (w *CommandWriter) Write(ctx context.Context, text string) error {
	cmd := exec.CommandContext(ctx, w.path, w.args...)
	cmd.Stdin = strings.NewReader(text)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", w.Name(), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// FileWriter drops each copy into a text file the user can open.
type FileWriter struct {
	dir  string
	now  func() time.Time
	mu   sync.Mutex
	last string
}

// NewFileWriter writes into dir, creating it on first use.
func NewFileWriter(dir string) *FileWriter {
	return &FileWriter{dir: dir, now: time.Now}
}

func (w *FileWriter) Name() string { return "file" }

func (w *FileWriter) Write(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create drop dir: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	name := "clipboard-" + w.now().Format("20060102-150405.000000000") + ".txt"
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write drop file: %w", err)
	}
	w.last = path
	return nil
}

// LastPath is the file written by the most recent successful Write.
func (w *FileWriter) LastPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}
