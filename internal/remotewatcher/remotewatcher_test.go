package remotewatcher

import (
	"bufio"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xtaci/smux"

	"github.com/voidiz/seedmirror/internal/mapping"
	"github.com/voidiz/seedmirror/internal/message"
	"github.com/voidiz/seedmirror/internal/workqueue"
)

// fakeServer emulates just enough of internal/server's protocol handling
// for remotewatcher.Run to exercise its dispatch loop against: it reads one
// ConnectionRequest, replies Connected, then writes whatever the test feeds
// it on the returned channel.
func fakeServer(t *testing.T, socketPath string) (send chan<- message.Message, requested <-chan []string) {
	t.Helper()

	ln, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	sendCh := make(chan message.Message, 8)
	reqCh := make(chan []string, 1)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		sess, err := smux.Server(conn, nil)
		if err != nil {
			return
		}
		defer sess.Close()

		stream, err := sess.AcceptStream()
		if err != nil {
			return
		}
		defer stream.Close()

		reader := bufio.NewReader(stream)
		req, err := message.Read(reader)
		if err != nil || req.Kind != message.KindConnectionRequest {
			return
		}
		reqCh <- req.WatchedPaths

		if err := message.Write(stream, message.Connected()); err != nil {
			return
		}

		for msg := range sendCh {
			if err := message.Write(stream, msg); err != nil {
				return
			}
		}
	}()

	return sendCh, reqCh
}

func TestRunSendsConnectionRequestAndFailsOnServerClose(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "server.sock")
	send, requested := fakeServer(t, socketPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := workqueue.New(ctx)

	cfg := Config{
		LocalSocketPath: socketPath,
		Mappings:        []mapping.PathMapping{{RemotePrefix: "/data", LocalPrefix: "/mnt/data"}},
		InitialSync:     false,
		DryRun:          true,
		SSHHost:         "host",
	}

	runErr := make(chan error, 1)
	go func() { runErr <- Run(ctx, cfg, q) }()

	select {
	case paths := <-requested:
		require.Equal(t, []string{"/data"}, paths)
	case <-time.After(time.Second):
		t.Fatal("server never received ConnectionRequest")
	}

	send <- message.FileUpdated("/data/file.txt")
	close(send)

	// The server closing its stream surfaces as an EOF read error. Run
	// turns only broken-pipe-shaped read errors (and reads that fail after
	// ctx is canceled) into a clean return; EOF is neither, so Run returns
	// it as an error, ending the client's supervised task.
	select {
	case err := <-runErr:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after server closed the stream")
	}
}
