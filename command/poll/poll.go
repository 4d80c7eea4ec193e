// Package poll is the cron job: it fetches newly dropped files from the remote
// store and runs the rollup when anything arrived.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"command-centre/command/rollup"
	"command-centre/connectors/remote"
	"command-centre/domain/config"
)

// Syncer downloads pending remote files into a directory and returns their
// names.
type Syncer interface {
	Sync(ctx context.Context, dir string) ([]string, error)
}

// Options builds the remote client options from cfg, reading secrets from the
// environment through getenv.
func Options(cfg *config.Config, getenv func(string) string) remote.Options {
	r := cfg.Remote
	env := func(name string) string {
		if name == "" {
			return ""
		}
		return getenv(name)
	}
	return remote.Options{
		ListURL:      r.ListURL,
		FunctionKey:  env(r.FunctionKeyEnv),
		TokenURL:     r.TokenURL,
		ClientID:     env(r.ClientIDEnv),
		ClientSecret: env(r.ClientSecretEnv),
		Scope:        r.Scope,
		Timeout:      r.Timeout,
	}
}

// Run performs one poll cycle.
func Run(ctx context.Context, cfg *config.Config) error {
	if cfg.Remote.ListURL == "" {
		return errors.New("poll: remote.list_url is not configured")
	}
	client := remote.NewClient(ctx, Options(cfg, os.Getenv))
	_, err := Poll(ctx, client, cfg.Inputs.UploadDir, func(ctx context.Context) error {
		return rollup.Run(ctx, cfg, "poll", nil)
	})
	return err
}

// Poll syncs dir and calls run only if at least one file was downloaded. It
// reports whether run was called.
func Poll(ctx context.Context, s Syncer, dir string, run func(context.Context) error) (bool, error) {
	slog.Info("poll.start", "dir", dir)
	saved, err := s.Sync(ctx, dir)
	if err != nil {
		return false, err
	}
	if len(saved) == 0 {
		slog.Info("poll.skip", "reason", "no files downloaded")
		return false, nil
	}
	slog.Info("poll.downloaded", "files", len(saved))
	return true, run(ctx)
}
