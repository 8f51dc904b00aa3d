// Command seedmirror-client tunnels to a seedmirror-server over ssh,
// subscribes to its watched paths, and mirrors changed files down via
// rsync according to a set of path mappings.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/voidiz/seedmirror/internal/logging"
	"github.com/voidiz/seedmirror/internal/mapping"
	"github.com/voidiz/seedmirror/internal/remotewatcher"
	"github.com/voidiz/seedmirror/internal/sshtunnel"
	"github.com/voidiz/seedmirror/internal/workqueue"
)

func main() {
	sshHostname := flag.String("ssh-hostname", "", "ssh destination for the server host (required)")
	remoteSocketPath := flag.String("socket-path", "/tmp/seedmirror-server.sock", "control socket path on the server host")
	localSocketPath := flag.String("local-socket-path", "/tmp/forwarded-seedmirror-server.sock", "local path to forward the tunneled socket to")
	initialSync := flag.Bool("initial-sync", true, "perform a full sync of every mapping on connect")
	dryRun := flag.Bool("dry-run", false, "log what would be synced without running rsync")

	var mappings mapping.FlagList
	flag.Var(&mappings, "path-mapping", "remote:local path mapping, repeatable")
	flag.Var(&mappings, "p", "shorthand for --path-mapping")
	flag.Parse()

	if *sshHostname == "" {
		fmt.Fprintln(os.Stderr, "seedmirror-client: --ssh-hostname is required")
		os.Exit(2)
	}
	if len(mappings) == 0 {
		fmt.Fprintln(os.Stderr, "seedmirror-client: at least one --path-mapping/-p is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := sshtunnel.Start(ctx, sshtunnel.Config{
		Host:             *sshHostname,
		LocalSocketPath:  *localSocketPath,
		RemoteSocketPath: *remoteSocketPath,
	}); err != nil {
		logging.L.Error(err).WithMessage("failed to establish ssh tunnel").Write()
		os.Exit(1)
	}

	q := workqueue.New(ctx)

	rcfg := remotewatcher.Config{
		LocalSocketPath: *localSocketPath,
		Mappings:        mappings,
		InitialSync:     *initialSync,
		DryRun:          *dryRun,
		SSHHost:         *sshHostname,
	}

	if err := remotewatcher.Run(ctx, rcfg, q); err != nil {
		logging.L.Error(err).WithMessage("client exited").Write()
		os.Exit(1)
	}
}
