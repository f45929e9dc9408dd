package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/snip/internal/gist"
	"github.com/mesh-intelligence/snip/internal/language"
	"github.com/mesh-intelligence/snip/internal/syncer"
	"github.com/mesh-intelligence/snip/pkg/types"
)

// gistRemote is the remote side of a sync as seen by the sync command.
type gistRemote interface {
	types.Remote
	GistID() string
}

// openRemote builds the remote for a sync. Tests replace it.
var openRemote = func(ctx context.Context, sc types.SyncConfig, logger *slog.Logger) gistRemote {
	client := gist.NewClient(ctx, sc.Token, sc.APIURL)
	return gist.NewRemote(client, sc.GistID, language.Default(), logger)
}

func newSyncCmd(a *app) *cobra.Command {
	var (
		force   bool
		dryRun  bool
		workers int
	)
	cmd := &cobra.Command{
		Use:   "sync {date|local|gist}",
		Short: "Synchronize snippets with a GitHub Gist",
		Long: `Synchronize the local store with the configured gist.

  date   merge both ways; a side changed since the last sync wins, and when
         both changed the later modification wins
  local  make the gist match the local store
  gist   make the local store match the gist

The first sync creates a private gist and saves its id in config.yaml.
The token is read from SNIP_GITHUB_TOKEN or github_token.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(types.SyncDate), string(types.SyncLocal), string(types.SyncGist)},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := types.ParseSyncMode(args[0])
			if err != nil {
				return err
			}
			sc, err := a.syncConfig(cmd, workers)
			if err != nil {
				return err
			}
			if mode == types.SyncGist && sc.GistID == "" {
				return userError("no gist_id configured: run \"snip sync local\" to create the gist first")
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			ctx := cmd.Context()
			remote := openRemote(ctx, sc, a.logger)
			engine := syncer.New(store, remote, syncer.Options{
				Workers: sc.Workers,
				DryRun:  dryRun,
				Logger:  a.logger,
			})

			if !dryRun && mode != types.SyncLocal {
				plan, err := engine.Plan(ctx, mode)
				if err != nil {
					return err
				}
				if local, _ := plan.Count(); local.Deleted > 0 {
					title := fmt.Sprintf("sync %s will delete %d local snippets. Continue?", mode, local.Deleted)
					if err := confirm(cmd.InOrStdin(), force, title); err != nil {
						return err
					}
				}
			}

			report, err := engine.Run(ctx, mode)
			if err != nil {
				return err
			}
			if id := remote.GistID(); id != "" && id != sc.GistID {
				if err := saveConfigValue(a.configDir, cfgKeyGistID, id); err != nil {
					warnf(cmd.ErrOrStderr(), "created gist %s but could not save it: %v", id, err)
				} else {
					a.logger.Info("gist created", "gist_id", id)
				}
			}
			if err := a.printer(cmd).report(report); err != nil {
				return err
			}
			if report.Failed() {
				return &codedError{
					code: exitSysError,
					err:  fmt.Errorf("sync incomplete: %d of %d actions failed", len(report.Failures), len(report.Failures)+report.Actions()),
				}
			}
			return nil
		},
	}
	fs := cmd.Flags()
	fs.BoolVar(&force, "force", false, "do not ask before deleting local snippets")
	fs.BoolVar(&dryRun, "dry-run", false, "show what would change without writing")
	fs.IntVar(&workers, "workers", 0, "concurrent writes (default: sync_workers from config)")
	return cmd
}

// syncConfig gathers the sync settings, asking for the token on a terminal
// when none is configured and saving it when the user agrees.
func (a *app) syncConfig(cmd *cobra.Command, workers int) (types.SyncConfig, error) {
	sc := types.SyncConfig{
		GistID:  a.cfg.GetString(cfgKeyGistID),
		Token:   a.cfg.GetString(cfgKeyGitHubToken),
		APIURL:  a.cfg.GetString(cfgKeyAPIURL),
		Workers: a.cfg.GetInt(cfgKeySyncWorkers),
	}
	if cmd.Flags().Changed("workers") {
		sc.Workers = workers
	}
	if sc.Workers == 0 {
		sc.Workers = defaultSyncWorkers
	}
	if sc.Token == "" {
		token, save, err := promptToken(cmd.InOrStdin())
		if err != nil {
			return sc, err
		}
		sc.Token = token
		if save {
			if err := saveConfigValue(a.configDir, cfgKeyGitHubToken, token); err != nil {
				warnf(cmd.ErrOrStderr(), "could not save the token: %v", err)
			} else {
				a.logger.Info("github token saved to config")
			}
		}
	}
	if err := sc.Validate(); err != nil {
		return sc, err
	}
	return sc, nil
}
