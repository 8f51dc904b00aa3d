// Package transfer drives rsync over ssh to pull files from the server
// host down to their mapped local destinations.
package transfer

import (
	"context"
	"fmt"
	"strings"

	"github.com/voidiz/seedmirror/internal/errkind"
	"github.com/voidiz/seedmirror/internal/logging"
	"github.com/voidiz/seedmirror/internal/mapping"
	"github.com/voidiz/seedmirror/internal/runner"
)

// Config carries the connection details every rsync invocation needs.
type Config struct {
	SSHHost  string
	Mappings []mapping.PathMapping
	DryRun   bool
}

const rsyncOutFormat = "--out-format=%n"

// FullSync pulls every mapping's entire remote subtree to its local
// destination. For each mapping it first runs rsync in dry-run mode to
// enumerate paths that would change; an empty result means the trees
// already agree and the mapping is skipped entirely. Otherwise, unless
// cfg.DryRun, it performs the real sync, streaming each transferred file
// name as it completes.
func FullSync(ctx context.Context, cfg Config) error {
	for _, m := range cfg.Mappings {
		remote := cfg.SSHHost + ":" + ensureTrailingSlash(m.RemotePrefix)
		local := m.LocalPrefix

		changed, err := diff(ctx, remote, local)
		if err != nil {
			return err
		}
		if len(changed) == 0 {
			logging.L.Info().WithMessage("no difference").WithField("remote", remote).Write()
			continue
		}

		if cfg.DryRun {
			for _, path := range changed {
				logging.L.Info().WithMessage("would update").WithField("path", path).Write()
			}
			continue
		}

		if err := runSync(ctx, remote, local); err != nil {
			return err
		}
	}
	return nil
}

// SyncFile resolves remotePath to its mapped local destination via
// mapping.Resolve and pulls just that one file (or directory subtree, if
// remotePath ends in a path separator).
func SyncFile(ctx context.Context, cfg Config, remotePath string) error {
	local, ok := mapping.Resolve(cfg.Mappings, strings.TrimSuffix(remotePath, "/"))
	if !ok {
		return errkind.New(errkind.NoMapping, "resolve "+remotePath, fmt.Errorf("no path mapping covers %q", remotePath))
	}

	remote := cfg.SSHHost + ":" + remotePath
	if cfg.DryRun {
		logging.L.Info().WithMessage("dry-run: would sync file").WithField("remote", remote).WithField("local", local).Write()
		return nil
	}

	return runSync(ctx, remote, local)
}

// diff runs rsync in dry-run mode and returns the paths it reports would
// change, via the same %n out-format used for the real transfer.
func diff(ctx context.Context, remote, local string) ([]string, error) {
	var changed []string
	err := runner.RunWithStreamingOutput(ctx, func(line string) {
		changed = append(changed, line)
	}, "rsync", "-ahzn", "--mkpath", rsyncOutFormat, remote, local)
	return changed, err
}

func runSync(ctx context.Context, remote, local string) error {
	return runner.RunWithStreamingOutput(ctx, func(line string) {
		logging.L.Info().WithMessage("synced").WithField("path", line).Write()
	}, "rsync", "-ahz", "--partial", "--mkpath", rsyncOutFormat, remote, local)
}

func ensureTrailingSlash(path string) string {
	if strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}
