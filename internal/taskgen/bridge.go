// Package taskgen turns a vacancy description into interview tasks by running
// the external generator program.
//
// File contract with the generator (stable, relied upon by generation.py):
//
//   - the vacancy text is written verbatim to the input file (default vacancy.txt)
//   - the generator is started in the working directory with
//     INTERVIEW_VACANCY_FILE and INTERVIEW_TASKS_FILE set to absolute paths
//   - on exit status 0 it must have written a JSON document to the output
//     file (default generated_tasks.json)
package taskgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tjfontaine/interview-gateway/internal/domain"
)

const (
	// EnvVacancyFile names the absolute path of the input file in the generator's environment.
	EnvVacancyFile = "INTERVIEW_VACANCY_FILE"
	// EnvTasksFile names the absolute path of the output file in the generator's environment.
	EnvTasksFile = "INTERVIEW_TASKS_FILE"

	defaultTimeout = 10 * time.Minute
	stderrTail     = 2048
)

var tracer = otel.Tracer("github.com/tjfontaine/interview-gateway/internal/taskgen")

// TaskGenerator produces the task document for a vacancy.
type TaskGenerator interface {
	Generate(ctx context.Context, vacancy string) (json.RawMessage, error)
}

// Options configures a FileBridge.
type Options struct {
	Command    string
	Args       []string
	WorkDir    string
	InputFile  string
	OutputFile string
	Timeout    time.Duration
	// Isolate runs every call in its own directory under WorkDir instead of
	// serialising calls on the shared files.
	Isolate bool
	Logger  *slog.Logger
}

// FileBridge implements TaskGenerator over the file contract described in the
// package documentation. Calls either hold a process-wide lock or run in a
// private directory, so concurrent requests never share files.
type FileBridge struct {
	opts   Options
	mu     sync.Mutex
	logger *slog.Logger
}

// NewFileBridge creates a bridge. Command, InputFile and OutputFile are required.
func NewFileBridge(opts Options) (*FileBridge, error) {
	if strings.TrimSpace(opts.Command) == "" {
		return nil, fmt.Errorf("generator command required")
	}
	if opts.InputFile == "" || opts.OutputFile == "" {
		return nil, fmt.Errorf("generator input and output files required")
	}
	if opts.WorkDir == "" {
		opts.WorkDir = "."
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &FileBridge{opts: opts, logger: logger}, nil
}

// Generate writes vacancy, runs the generator and returns its JSON output
// verbatim. Any failure aborts the whole call; a partial or stale document is
// never returned.
func (b *FileBridge) Generate(ctx context.Context, vacancy string) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "taskgen.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("taskgen.command", b.opts.Command),
		attribute.Bool("taskgen.isolate", b.opts.Isolate),
		attribute.Int("taskgen.vacancy_bytes", len(vacancy)),
	)

	var (
		out json.RawMessage
		err error
	)
	if b.opts.Isolate {
		out, err = b.generateIsolated(ctx, vacancy)
	} else {
		b.mu.Lock()
		out, err = b.run(ctx, b.opts.WorkDir, vacancy)
		b.mu.Unlock()
	}

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return out, nil
}

func (b *FileBridge) generateIsolated(ctx context.Context, vacancy string) (json.RawMessage, error) {
	dir := filepath.Join(b.opts.WorkDir, "taskgen-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.ErrIO("failed to create generator workspace", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			b.logger.Warn("failed to remove generator workspace",
				slog.String("dir", dir),
				slog.String("error", err.Error()))
		}
	}()
	return b.run(ctx, dir, vacancy)
}

// run performs the three sequential stages in dir.
func (b *FileBridge) run(ctx context.Context, dir, vacancy string) (json.RawMessage, error) {
	inputPath, err := filepath.Abs(filepath.Join(dir, b.opts.InputFile))
	if err != nil {
		return nil, domain.ErrIO("failed to resolve input file", err)
	}
	outputPath, err := filepath.Abs(filepath.Join(dir, b.opts.OutputFile))
	if err != nil {
		return nil, domain.ErrIO("failed to resolve output file", err)
	}

	// Stage 1: hand the vacancy to the generator.
	if err := os.WriteFile(inputPath, []byte(vacancy), 0o644); err != nil {
		return nil, domain.ErrIO("failed to write vacancy file", err)
	}

	// A document left by an earlier run must never be served for this one.
	if err := os.Remove(outputPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrIO("failed to clear previous tasks file", err)
	}

	// Stage 2: run the generator.
	if err := b.exec(ctx, dir, inputPath, outputPath); err != nil {
		return nil, err
	}

	// Stage 3: read back and validate the document.
	data, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, domain.ErrIO("failed to read generated tasks file", err)
	}
	if !json.Valid(data) {
		var probe any
		cause := json.Unmarshal(data, &probe)
		return nil, domain.ErrParse("generated tasks file is not valid JSON", cause).
			WithStatusCode(500)
	}

	return json.RawMessage(bytes.TrimSpace(data)), nil
}

func (b *FileBridge) exec(ctx context.Context, dir, inputPath, outputPath string) error {
	ctx, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.opts.Command, b.opts.Args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		EnvVacancyFile+"="+inputPath,
		EnvTasksFile+"="+outputPath,
	)
	// Kill the generator's children too rather than waiting on inherited pipes forever.
	cmd.WaitDelay = 5 * time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if err != nil {
		// Check if the error was due to context timeout.
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			b.logger.Error("task generator timed out",
				slog.String("command", b.opts.Command),
				slog.Duration("timeout", b.opts.Timeout))
			return domain.ErrTimeout(fmt.Sprintf("task generator timed out after %s", b.opts.Timeout), ctx.Err())
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			b.logger.Error("task generator failed",
				slog.String("command", b.opts.Command),
				slog.Int("exit_code", exitErr.ExitCode()),
				slog.String("stderr", tail(stderr.String(), stderrTail)))
			msg := fmt.Sprintf("task generator exited with status %d", exitErr.ExitCode())
			if s := strings.TrimSpace(tail(stderr.String(), 512)); s != "" {
				msg += ": " + s
			}
			return domain.ErrGeneration(msg, err)
		}

		return domain.ErrGeneration("failed to start task generator", err)
	}

	b.logger.Info("task generator finished",
		slog.String("command", b.opts.Command),
		slog.Duration("duration", duration))
	return nil
}

// tail returns at most the last n bytes of s, starting on a rune boundary.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}
