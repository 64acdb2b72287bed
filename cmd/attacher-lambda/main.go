// The attacher-lambda command backs the CloudFormation custom resource that
// links a replication group's connection metadata into a secret.
package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/systmms/cacherotate/internal/attacher"
	"github.com/systmms/cacherotate/internal/cluster"
	"github.com/systmms/cacherotate/internal/config"
	"github.com/systmms/cacherotate/internal/logging"
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

	att := attacher.New(store, controlPlane, logger)

	lambda.Start(cfn.LambdaWrap(func(ctx context.Context, event cfn.Event) (string, map[string]interface{}, error) {
		secretID, _ := event.ResourceProperties["SecretId"].(string)
		targetID, _ := event.ResourceProperties["TargetId"].(string)
		targetType, _ := event.ResourceProperties["TargetType"].(string)

		physicalID := event.PhysicalResourceID
		if physicalID == "" {
			physicalID = fmt.Sprintf("%s|%s", secretID, targetID)
		}

		switch event.RequestType {
		case cfn.RequestCreate, cfn.RequestUpdate:
			if err := att.Attach(ctx, secretID, targetID, targetType); err != nil {
				logger.Error().Err(err).Str("secret", secretID).Msg("attach failed")
				return physicalID, nil, err
			}
			return physicalID, nil, nil
		case cfn.RequestDelete:
			// The secret keeps its value; deletion of the link is a no-op.
			return physicalID, nil, nil
		default:
			return physicalID, nil, fmt.Errorf("unsupported request type %s", event.RequestType)
		}
	}))
}
