// Package sshtunnel spawns and supervises the "ssh -L" forwarding process
// that carries the control-socket protocol from the client host to the
// server's Unix socket.
package sshtunnel

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/voidiz/seedmirror/internal/errkind"
	"github.com/voidiz/seedmirror/internal/logging"
)

// Config describes one tunnel: ssh to Host, forwarding LocalSocketPath on
// this machine to RemoteSocketPath on the far end.
type Config struct {
	Host             string
	LocalSocketPath  string
	RemoteSocketPath string
}

// Tunnel is a running "ssh -L" child process. Canceling the context
// passed to Start kills it, the idiomatic Go equivalent of kill-on-drop.
type Tunnel struct {
	cmd *exec.Cmd
}

// Start launches the ssh process and waits (polling) for the local socket
// to appear before returning, so callers can dial it immediately.
func Start(ctx context.Context, cfg Config) (*Tunnel, error) {
	if err := os.RemoveAll(cfg.LocalSocketPath); err != nil {
		return nil, errkind.New(errkind.SocketPrep, "remove stale local socket", err)
	}

	forward := fmt.Sprintf("%s:%s", cfg.LocalSocketPath, cfg.RemoteSocketPath)
	args := []string{cfg.Host, "-nNT", "-L", forward}

	logging.L.Info().
		WithMessage("starting ssh tunnel").
		WithField("cmd", "ssh "+fmt.Sprint(args)).
		Write()

	cmd := exec.CommandContext(ctx, "ssh", args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return nil, errkind.New(errkind.ChildFailed, "start ssh tunnel", err)
	}

	t := &Tunnel{cmd: cmd}

	go func() {
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			logging.L.Error(err).WithMessage("ssh tunnel exited unexpectedly").Write()
		}
	}()

	if err := waitForSocket(ctx, cfg.LocalSocketPath); err != nil {
		return nil, err
	}

	logging.L.Info().WithMessage("ssh tunnel established").WithField("local_socket", cfg.LocalSocketPath).Write()
	return t, nil
}

// waitForSocket polls for the local forwarded socket file to exist, since
// ssh gives no synchronous signal that the forward is ready to accept.
func waitForSocket(ctx context.Context, path string) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			return errkind.New(errkind.SocketPrep, "wait for tunnel socket", ctx.Err())
		case <-ticker.C:
		}
	}
}
