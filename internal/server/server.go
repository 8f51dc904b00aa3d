// Package server implements the connection manager: it binds the control
// socket, accepts clients, and runs one handler per connection that wires
// together a per-connection watcher, debouncer, and framed writer.
package server

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"github.com/xtaci/smux"

	"github.com/voidiz/seedmirror/internal/debounce"
	"github.com/voidiz/seedmirror/internal/errkind"
	"github.com/voidiz/seedmirror/internal/logging"
	"github.com/voidiz/seedmirror/internal/message"
	"github.com/voidiz/seedmirror/internal/watcher"
)

// Config holds the server's CLI-configurable behavior.
type Config struct {
	SocketPath string
	SyncDelay  time.Duration
}

// Run removes any stale socket, binds the listener, and accepts
// connections until ctx is canceled.
func Run(ctx context.Context, cfg Config) error {
	if err := os.RemoveAll(cfg.SocketPath); err != nil {
		return errkind.New(errkind.SocketPrep, "remove stale socket", err)
	}

	ln, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		return errkind.New(errkind.SocketPrep, "listen on "+cfg.SocketPath, err)
	}
	defer ln.Close()

	if err := os.Chmod(cfg.SocketPath, 0o600); err != nil {
		return errkind.New(errkind.SocketPrep, "chmod socket", err)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	logging.L.Info().
		WithMessage("listening for connections").
		WithField("socket", cfg.SocketPath).
		Write()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logging.L.Error(err).WithMessage("failed to accept connection").Write()
			continue
		}
		go handleConnection(ctx, conn, cfg.SyncDelay)
	}
}

func handleConnection(ctx context.Context, conn net.Conn, syncDelay time.Duration) {
	defer conn.Close()

	sess, err := smux.Server(conn, nil)
	if err != nil {
		logging.L.Error(err).WithMessage("failed to open mux session").Write()
		return
	}
	defer sess.Close()

	stream, err := sess.AcceptStream()
	if err != nil {
		logging.L.Error(err).WithMessage("failed to accept mux stream").Write()
		return
	}
	defer stream.Close()

	reader := bufio.NewReader(stream)

	w, err := watcher.New()
	if err != nil {
		logging.L.Error(err).WithMessage("failed to create watcher").Write()
		return
	}
	defer w.Close()

	first, err := message.Read(reader)
	if err != nil {
		logging.L.Error(err).WithMessage("failed to read first frame").Write()
		return
	}
	if first.Kind != message.KindConnectionRequest {
		logging.L.Warn().WithMessage("first frame was not a ConnectionRequest, ignoring connection").Write()
		return
	}

	for _, path := range first.WatchedPaths {
		if err := w.Watch(path); err != nil {
			logging.L.Error(err).WithMessage("failed to watch path").WithField("path", path).Write()
		}
	}

	if err := message.Write(stream, message.Connected()); err != nil {
		if !errkind.IsBrokenPipe(err) {
			logging.L.Error(err).WithMessage("failed to write Connected").Write()
		}
		return
	}

	debouncer := debounce.New(syncDelay)
	debounceErrCh := make(chan error, 1)
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		debounceErrCh <- debouncer.Run(connCtx, w.Events())
	}()

	readErrCh := make(chan error, 1)
	go func() {
		for {
			if _, err := message.Read(reader); err != nil {
				readErrCh <- err
				return
			}
			// Client never sends more than ConnectionRequest; any further
			// frame is ignored per spec.
		}
	}()

	logging.L.Info().WithMessage("established connection with client").Write()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-debouncer.Out():
			if !ok {
				return
			}
			if err := message.Write(stream, msg); err != nil {
				if errkind.IsBrokenPipe(err) {
					logging.L.Info().WithMessage("connection closed by client").Write()
				} else {
					logging.L.Error(err).WithMessage("failed to write message").Write()
				}
				return
			}
		case err := <-debounceErrCh:
			if err != nil {
				logging.L.Error(err).WithMessage("debouncer failed, terminating connection").Write()
			}
			return
		case err := <-readErrCh:
			if errkind.IsBrokenPipe(err) || errors.Is(err, io.EOF) {
				logging.L.Info().WithMessage("connection closed by client").Write()
			} else {
				logging.L.Warn().WithMessage("client read failed, terminating connection").Write()
			}
			return
		}
	}
}
