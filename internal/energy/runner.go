package energy

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Runner starts an external program in dir and waits for it.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (stdout []byte, err error)
}

// ExecRunner runs programs with os/exec. The process is killed when ctx is
// done.
type ExecRunner struct {
	Logger *slog.Logger
}

func (r ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() != nil {
		return stdout.Bytes(), ctx.Err()
	}
	if msg := strings.TrimSpace(stderr.String()); msg != "" && r.Logger != nil {
		r.Logger.Debug("engine stderr", "program", name, "stderr", msg)
	}
	if err != nil {
		return stdout.Bytes(), fmt.Errorf("run %s: %w", name, err)
	}
	return stdout.Bytes(), nil
}
