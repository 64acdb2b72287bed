// Package commands implements the cacherotate CLI commands.
package commands

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/systmms/cacherotate/internal/cluster"
	"github.com/systmms/cacherotate/internal/config"
	"github.com/systmms/cacherotate/internal/secretstore"
)

// Runtime carries the state shared by every command, populated by the root
// command before any subcommand runs.
type Runtime struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Version string
}

// secretStore builds the Secrets Manager-backed store from the runtime
// configuration.
func (rt *Runtime) secretStore(ctx context.Context) (*secretstore.Store, error) {
	return secretstore.New(ctx, secretstore.Options{
		Region:          rt.Config.AWSRegion,
		Endpoint:        rt.Config.SecretsManagerEndpoint,
		AccessKeyID:     rt.Config.AWSAccessKeyID,
		SecretAccessKey: rt.Config.AWSSecretAccessKey,
	})
}

// clusterClient builds the ElastiCache management client from the runtime
// configuration.
func (rt *Runtime) clusterClient(ctx context.Context) (*cluster.Client, error) {
	return cluster.New(ctx, rt.Config.AWSRegion, cluster.PollPolicy{
		Interval: rt.Config.AuthTokenPollInterval,
	}, rt.Logger)
}
