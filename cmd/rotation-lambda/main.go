// The rotation-lambda command is the Secrets Manager rotation function for
// ElastiCache replication group auth tokens.
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/systmms/cacherotate/internal/cluster"
	"github.com/systmms/cacherotate/internal/config"
	"github.com/systmms/cacherotate/internal/logging"
	"github.com/systmms/cacherotate/internal/probe"
	"github.com/systmms/cacherotate/internal/rotator"
	"github.com/systmms/cacherotate/internal/secretstore"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	store, err := secretstore.New(ctx, secretstore.Options{
		Region:   cfg.AWSRegion,
		Endpoint: cfg.SecretsManagerEndpoint,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize secret store client")
	}

	controlPlane, err := cluster.New(ctx, cfg.AWSRegion, cluster.PollPolicy{
		Interval: cfg.AuthTokenPollInterval,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize cluster client")
	}

	rot := rotator.New(store, controlPlane, probe.NewRedisProber(logger), logger)

	lambda.Start(func(ctx context.Context, event rotator.Event) error {
		logger.Info().
			Str("secret", event.SecretID).
			Str("version", event.ClientRequestToken).
			Str("step", string(event.Step)).
			Msg("rotation step received")
		if err := rot.Handle(ctx, event); err != nil {
			logger.Error().Err(err).Str("step", string(event.Step)).Msg("rotation step failed")
			return err
		}
		return nil
	})
}
