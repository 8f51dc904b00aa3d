// Command seedmirror-server watches a set of directories and announces
// changes to whichever client connects over its Unix control socket.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voidiz/seedmirror/internal/logging"
	"github.com/voidiz/seedmirror/internal/server"
)

func main() {
	socketPath := flag.String("socket-path", "/tmp/seedmirror-server.sock", "path to the control socket")
	syncDelayMs := flag.Int("sync-delay", 10000, "debounce window, in milliseconds, before announcing a changed path")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := server.Config{
		SocketPath: *socketPath,
		SyncDelay:  time.Duration(*syncDelayMs) * time.Millisecond,
	}

	if err := server.Run(ctx, cfg); err != nil {
		logging.L.Error(err).WithMessage("server exited").Write()
		os.Exit(1)
	}
}
