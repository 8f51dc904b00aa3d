// Package remotewatcher is the client-side counterpart to internal/server:
// it opens the muxed stream over the tunneled socket, announces the
// watched paths, and translates incoming messages into workqueue tasks.
package remotewatcher

import (
	"bufio"
	"context"
	"net"

	"github.com/xtaci/smux"

	"github.com/voidiz/seedmirror/internal/errkind"
	"github.com/voidiz/seedmirror/internal/logging"
	"github.com/voidiz/seedmirror/internal/mapping"
	"github.com/voidiz/seedmirror/internal/message"
	"github.com/voidiz/seedmirror/internal/transfer"
	"github.com/voidiz/seedmirror/internal/workqueue"
)

// fullSyncID is reserved for the full-sync task so it can never collide
// with a remote path, which can never contain a NUL byte.
const fullSyncID = "\x00full_sync"

// Config carries what Run needs to connect and drive transfers.
type Config struct {
	LocalSocketPath string
	Mappings        []mapping.PathMapping
	InitialSync     bool
	DryRun          bool
	SSHHost         string
}

// Run dials the tunneled Unix socket, opens a mux stream, sends the
// ConnectionRequest, and then processes Connected/FileUpdated messages
// until ctx is canceled or the connection fails.
func Run(ctx context.Context, cfg Config, q *workqueue.Queue) error {
	conn, err := net.Dial("unix", cfg.LocalSocketPath)
	if err != nil {
		return errkind.New(errkind.SocketIO, "dial "+cfg.LocalSocketPath, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	sess, err := smux.Client(conn, nil)
	if err != nil {
		return errkind.New(errkind.SocketIO, "open mux session", err)
	}
	defer sess.Close()

	stream, err := sess.OpenStream()
	if err != nil {
		return errkind.New(errkind.SocketIO, "open mux stream", err)
	}
	defer stream.Close()

	watched := make([]string, len(cfg.Mappings))
	for i, m := range cfg.Mappings {
		watched[i] = m.RemotePrefix
	}

	if err := message.Write(stream, message.ConnectionRequest(watched)); err != nil {
		return errkind.New(errkind.SocketIO, "write ConnectionRequest", err)
	}

	reader := bufio.NewReader(stream)
	tcfg := transfer.Config{SSHHost: cfg.SSHHost, Mappings: cfg.Mappings, DryRun: cfg.DryRun}

	for {
		msg, err := message.Read(reader)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errkind.IsBrokenPipe(err) {
				logging.L.Info().WithMessage("connection closed by server").Write()
				return nil
			}
			return err
		}

		switch msg.Kind {
		case message.KindConnected:
			logging.L.Info().WithMessage("connected to server").Write()
			if cfg.InitialSync {
				submitFullSync(q, tcfg)
			}
		case message.KindFileUpdated:
			submitFileSync(q, tcfg, msg.Path)
		default:
			logging.L.Warn().WithMessage("unexpected message from server").Write()
		}
	}
}

func submitFullSync(q *workqueue.Queue, tcfg transfer.Config) {
	q.Submit(workqueue.Task{
		ID: fullSyncID,
		Run: func(ctx context.Context) error {
			return transfer.FullSync(ctx, tcfg)
		},
	})
}

func submitFileSync(q *workqueue.Queue, tcfg transfer.Config, remotePath string) {
	q.Submit(workqueue.Task{
		ID: remotePath,
		Run: func(ctx context.Context) error {
			return transfer.SyncFile(ctx, tcfg, remotePath)
		},
	})
}
