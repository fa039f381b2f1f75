package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/bibnote/bibnote/internal/config"
	"github.com/bibnote/bibnote/internal/prompt"
	"github.com/bibnote/bibnote/internal/prompt/stdio"
	"github.com/bibnote/bibnote/internal/tui"
)

var errNoHost = errors.New("no dialog host is running")

// dialogRunner is a prompt host with an event loop.
type dialogRunner interface {
	prompt.Host
	Run(ctx context.Context) error
}

type tuiRunner struct {
	*tui.Host
	input  io.Reader
	output io.Writer
}

func (r tuiRunner) Run(ctx context.Context) error {
	return r.Host.Run(ctx, r.input, r.output)
}

type stdioRunner struct {
	*stdio.Host
	input io.Reader
}

func (r stdioRunner) Run(ctx context.Context) error {
	return r.Host.Run(ctx, r.input)
}

// hostSwitch forwards Open to the host of the running command, so palette
// callbacks can be registered before a host exists.
type hostSwitch struct {
	mu      sync.RWMutex
	current prompt.Host
}

func (h *hostSwitch) set(host prompt.Host) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = host
}

func (h *hostSwitch) Open(title string, onDismiss func()) prompt.Surface {
	h.mu.RLock()
	current := h.current
	h.mu.RUnlock()
	if current == nil {
		return detachedSurface{}
	}
	return current.Open(title, onDismiss)
}

type detachedSurface struct{}

func (detachedSurface) Attach(prompt.Widget) {}
func (detachedSurface) Present() error      { return errNoHost }
func (detachedSurface) Dismiss()            {}

// newRunner picks the dialog host. auto uses full-screen dialogs only when both
// ends are a terminal.
func (a *app) newRunner() (dialogRunner, string) {
	mode := a.cfg.Host
	if mode == config.HostAuto {
		mode = config.HostStdio
		if a.interactive() {
			mode = config.HostTUI
		}
	}
	if mode == config.HostTUI {
		return tuiRunner{Host: tui.NewHost(), input: a.stdin, output: a.stdout}, mode
	}
	return stdioRunner{Host: stdio.New(a.stdout), input: a.stdin}, mode
}

// runDialogs runs fn on its own goroutine while the dialog host's event loop
// owns the calling goroutine. The host stops when fn returns; a host that stops
// first dismisses its dialogs, which resolves fn's pending prompts.
func (a *app) runDialogs(ctx context.Context, fn func(ctx context.Context) error) error {
	runner, mode := a.newRunner()
	a.hosts.set(runner)
	defer a.hosts.set(nil)
	a.logger.Debug("dialog host selected", "host", mode)

	hostCtx, stopHost := context.WithCancel(ctx)
	defer stopHost()

	done := make(chan error, 1)
	go func() {
		err := fn(ctx)
		stopHost()
		done <- err
	}()

	hostErr := runner.Run(hostCtx)
	err := <-done
	if hostErr != nil && !errors.Is(hostErr, context.Canceled) {
		if err == nil || isCancellation(err) {
			return fmt.Errorf("%s dialog host: %w", mode, hostErr)
		}
		a.logger.Warn("dialog host stopped with error", "host", mode, "error", hostErr)
	}
	return err
}

func isCancellation(err error) bool {
	return errors.Is(err, prompt.ErrCancelled) ||
		errors.Is(err, tui.ErrHostClosed) ||
		errors.Is(err, stdio.ErrHostClosed)
}

// isTerminal reports whether stream is a character device and TERM allows
// full-screen output.
func isTerminal(stream any) bool {
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	file, ok := stream.(*os.File)
	if !ok {
		return false
	}
	info, err := file.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
