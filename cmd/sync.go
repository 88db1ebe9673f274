package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/likesync/internal/services"
	"github.com/desertthunder/likesync/internal/shared"
	"github.com/desertthunder/likesync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// rotation publishes every token the Spotify client refreshes until stop is called.
type rotation struct {
	relay     *credentialRelay
	publisher *tasks.Publisher
	done      chan struct{}
}

// startRotation fetches the secret store key and registers the refresh callback on svc.
//
// Must run before svc authenticates so the first exchanged token is published too.
func (r *Runner) startRotation(ctx context.Context, svc services.Service) (*rotation, error) {
	store, err := r.secretStore()
	if err != nil {
		return nil, err
	}

	r.writePlain("Fetching secret key... ")
	logger := shared.WithLogger(r.logger, "component", "publisher")
	publisher := tasks.NewPublisher(store, tasks.PublisherOpts{
		SecretName: r.config.Credentials.GitHub.SecretName,
		Logger:     logger,
	})
	if err := publisher.Init(ctx); err != nil {
		r.writePlain("%s\n", failedMarker())
		return nil, err
	}
	r.writePlain("%s\n", okMarker(""))

	rot := &rotation{
		relay:     newCredentialRelay(8, logger),
		publisher: publisher,
		done:      make(chan struct{}),
	}
	svc.SetTokenRefreshCallback(rot.relay.Send)

	go func() {
		defer close(rot.done)
		publisher.Listen(ctx, rot.relay.ch, nil)
	}()

	return rot, nil
}

// stop drains pending publishes and reports whether any refreshed credential was not stored.
func (rot *rotation) stop() error {
	rot.relay.Close()
	<-rot.done

	failures := rot.publisher.Failures() + rot.relay.Dropped()
	if failures > 0 {
		return fmt.Errorf("%w: %d of %d refreshed credentials were not stored",
			shared.ErrPublishFailed, failures, failures+rot.publisher.Published())
	}
	return nil
}

// printProgress writes progress updates until the returned channel is closed. done closes after the last write.
func (r *Runner) printProgress() (progress chan tasks.ProgressUpdate, done <-chan struct{}) {
	progress = make(chan tasks.ProgressUpdate, 50)
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		for update := range progress {
			switch update.Phase {
			case tasks.FetchLibrary, tasks.FetchPlaylist, tasks.Compare:
				r.writePlain("%s %s\n", okMarker(""), update.Message)
			case tasks.InsertTracks, tasks.RemoveTracks, tasks.AppendTracks:
				r.writePlain("   %s\n", update.Message)
			case tasks.RecordLog:
				r.writePlain("%s %s\n", okMarker(""), update.Message)
			}
		}
	}()

	return progress, finished
}

// Sync makes the configured playlist mirror the liked songs library and rotates the refresh token secret.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(shared.ModeSync); err != nil {
		return err
	}

	svc, err := r.spotifyService()
	if err != nil {
		return err
	}

	rot, err := r.startRotation(ctx, svc)
	if err != nil {
		return err
	}

	if _, err := r.authenticate(ctx, svc); err != nil {
		return errors.Join(err, rot.stop())
	}

	syncLog, closeLog, err := r.syncLog()
	if err != nil {
		return errors.Join(err, rot.stop())
	}
	defer closeLog()

	syncConfig := r.config.Sync
	r.logger.Info("starting sync", "playlist", syncConfig.PlaylistID)

	engine := tasks.NewPlaylistEngine(svc, syncLog, r.logger)
	progress, done := r.printProgress()
	result, syncErr := engine.Sync(ctx, progress, tasks.SyncOpts{
		PlaylistID:  syncConfig.PlaylistID,
		PageDelay:   syncConfig.PageDelay,
		InsertDelay: syncConfig.InsertDelay,
		BatchSize:   syncConfig.BatchSize,
	})
	close(progress)
	<-done

	publishErr := rot.stop()

	if result != nil && syncErr == nil {
		r.writePlainln("")
		r.writePlainHeader("Sync Complete!")
		r.writePlain("Library: %d songs\n", result.Run.LibraryCount)
		r.writePlain("Playlist: %d songs\n", result.Run.PlaylistCount)
		r.writePlain("Added: %d\n", result.Run.AddedCount)
		r.writePlain("Removed: %d\n", result.Run.RemovedCount)
		if result.Run.Sequence > 0 {
			r.writePlain("Run: #%d\n", result.Run.Sequence)
		}
	}

	r.writePlain("Credentials published: %d\n", rot.publisher.Published())
	if publishErr != nil {
		r.writePlain("%s %v\n", failedMarker(), publishErr)
	}

	return errors.Join(syncErr, publishErr)
}

// Backup copies a generated playlist into its backup playlist.
//
// The refresh token is rotated as well when a GitHub repository is configured.
func (r *Runner) Backup(mode shared.Mode) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		if err := r.config.Validate(mode); err != nil {
			return err
		}

		opts := tasks.BackupOpts{
			Mode:        string(mode),
			PageDelay:   r.config.Sync.PageDelay,
			InsertDelay: r.config.Sync.InsertDelay,
			BatchSize:   r.config.Sync.BatchSize,
		}
		switch mode {
		case shared.ModeDiscoverWeekly:
			opts.SourceID = r.config.Backup.DiscoverWeeklyID
			opts.TargetID = r.config.Backup.DiscoverWeeklyBackupID
		case shared.ModeReleaseRadar:
			opts.SourceID = r.config.Backup.ReleaseRadarID
			opts.TargetID = r.config.Backup.ReleaseRadarBackupID
		default:
			return fmt.Errorf("%w: %s is not a backup mode", shared.ErrInvalidArgument, mode)
		}

		svc, err := r.spotifyService()
		if err != nil {
			return err
		}

		var rot *rotation
		github := r.config.Credentials.GitHub
		if github.Token != "" && github.Repository != "" && github.SecretName != "" {
			if rot, err = r.startRotation(ctx, svc); err != nil {
				return err
			}
		}
		stopRotation := func() error {
			if rot == nil {
				return nil
			}
			return rot.stop()
		}

		if _, err := r.authenticate(ctx, svc); err != nil {
			return errors.Join(err, stopRotation())
		}

		syncLog, closeLog, err := r.syncLog()
		if err != nil {
			return errors.Join(err, stopRotation())
		}
		defer closeLog()

		r.logger.Info("starting backup", "mode", mode, "source", opts.SourceID, "target", opts.TargetID)

		engine := tasks.NewPlaylistEngine(svc, syncLog, r.logger)
		progress, done := r.printProgress()
		result, backupErr := engine.Backup(ctx, progress, opts)
		close(progress)
		<-done

		publishErr := stopRotation()

		if backupErr == nil {
			r.writePlainln("")
			r.writePlainHeader("Backup Complete!")
			r.writePlain("Copied: %d songs\n", len(result.Tracks))
		}
		if publishErr != nil {
			r.writePlain("%s %v\n", failedMarker(), publishErr)
		}

		return errors.Join(backupErr, publishErr)
	}
}
