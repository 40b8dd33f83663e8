package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrRenderFailed wraps a failing generator command.
var ErrRenderFailed = errors.New("pipeline: render failed")

// Renderer turns a filtered site tree into a rendered output tree.
type Renderer interface {
	Render(ctx context.Context, t Target) error
}

// CommandRenderer runs an external site generator. Arguments may contain
// the placeholders {dest}, {output}, {target} and {audience}.
type CommandRenderer struct {
	Command []string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Render runs the command in the target's destination directory.
func (c *CommandRenderer) Render(ctx context.Context, t Target) error {
	if len(c.Command) == 0 {
		return nil
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	args := expandArgs(c.Command, t)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = t.Dest
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("render: running generator", slog.String("target", t.Name), slog.String("command", strings.Join(args, " ")))
	err := cmd.Run()

	if s := stdout.String(); s != "" {
		logger.Debug("render: generator stdout", slog.String("target", t.Name), slog.String("output", s))
	}
	if s := stderr.String(); s != "" {
		logger.Warn("render: generator stderr", slog.String("target", t.Name), slog.String("output", s))
	}
	if err != nil {
		if out := strings.TrimSpace(stderr.String()); out != "" {
			return fmt.Errorf("%w: %s: %w: %s", ErrRenderFailed, args[0], err, out)
		}
		return fmt.Errorf("%w: %s: %w", ErrRenderFailed, args[0], err)
	}
	return nil
}

func expandArgs(command []string, t Target) []string {
	r := strings.NewReplacer(
		"{dest}", absPath(t.Dest),
		"{output}", absPath(t.Output),
		"{target}", t.Name,
		"{audience}", string(t.Audience),
	)
	out := make([]string, len(command))
	for i, a := range command {
		out[i] = r.Replace(a)
	}
	return out
}

// NoopRenderer renders nothing; the output tree is produced elsewhere.
type NoopRenderer struct{}

// Render does nothing.
func (NoopRenderer) Render(context.Context, Target) error { return nil }

// absPath resolves p against the working directory since the generator
// runs inside the target's destination.
func absPath(p string) string {
	if p == "" {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
