package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/likesync/internal/shared"
	"github.com/urfave/cli/v3"
)

// SecretsPublish exchanges the configured refresh token once and stores the resulting credential as the repository secret.
func (r *Runner) SecretsPublish(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(shared.ModePublish); err != nil {
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

	_, authErr := r.authenticate(ctx, svc)
	if err := errors.Join(authErr, rot.stop()); err != nil {
		return err
	}

	if rot.publisher.Published() == 0 {
		return fmt.Errorf("%w: no refreshed credential to store", shared.ErrPublishFailed)
	}

	r.writePlainln("%s Stored %s", okMarker(""), r.config.Credentials.GitHub.SecretName)
	return nil
}
