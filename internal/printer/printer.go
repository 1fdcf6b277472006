// Package printer submits local files to the host's print spooler.
package printer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Runner executes a host command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Adapter wraps the native print command of one host OS.
type Adapter struct {
	goos       string
	run        Runner
	countPages func(path string) (int, error)
}

type Option func(*Adapter)

// WithRunner replaces the command runner, e.g. with a fake in tests.
func WithRunner(r Runner) Option {
	return func(a *Adapter) { a.run = r }
}

// WithOS selects the command set for goos instead of runtime.GOOS.
func WithOS(goos string) Option {
	return func(a *Adapter) { a.goos = goos }
}

// WithPageCounter replaces the PDF page counter.
func WithPageCounter(fn func(path string) (int, error)) Option {
	return func(a *Adapter) { a.countPages = fn }
}

func New(opts ...Option) *Adapter {
	a := &Adapter{
		goos:       runtime.GOOS,
		run:        execRunner,
		countPages: api.PageCountFile,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Command returns the host command that prints filePath. An empty
// printerName targets the system default printer.
func (a *Adapter) Command(filePath, printerName string) (string, []string) {
	if a.goos == "windows" {
		if printerName != "" {
			return "cmd", []string{"/C", "print", "/d:" + printerName, filePath}
		}
		quoted := "'" + strings.ReplaceAll(filePath, "'", "''") + "'"
		return "powershell", []string{"-NoProfile", "-Command", "Start-Process -FilePath " + quoted + " -Verb Print"}
	}

	args := []string{filePath}
	if printerName != "" {
		args = append(args, "-d", printerName)
	}
	return "lp", args
}

// Print submits filePath to the spooler and waits only for the job to be
// accepted. Every failure is reported as ok == false with a readable detail.
func (a *Adapter) Print(ctx context.Context, filePath, printerName string) (ok bool, detail string) {
	defer func() {
		if r := recover(); r != nil {
			ok, detail = false, fmt.Sprintf("print panicked: %v", r)
		}
	}()

	if _, err := os.Stat(filePath); err != nil {
		return false, fmt.Sprintf("file not printable: %v", err)
	}

	name, args := a.Command(filePath, printerName)
	out, err := a.run(ctx, name, args...)
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return false, fmt.Sprintf("%s: %v", msg, err)
		}
		return false, err.Error()
	}

	if pages := a.pageCount(filePath); pages > 0 {
		return true, fmt.Sprintf("Sent to printer (%d pages)", pages)
	}
	return true, "Sent to printer"
}

// pageCount returns 0 for non-PDF files or when the PDF cannot be parsed.
func (a *Adapter) pageCount(filePath string) (n int) {
	if !strings.EqualFold(filepath.Ext(filePath), ".pdf") || a.countPages == nil {
		return 0
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("PDF page count panicked.", "path", filePath, "panic", r)
			n = 0
		}
	}()
	n, err := a.countPages(filePath)
	if err != nil {
		slog.Debug("Could not count PDF pages.", "path", filePath, "error", err)
		return 0
	}
	return n
}
