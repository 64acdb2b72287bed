package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/cacherotate/internal/attacher"
)

// NewAttachCommand creates the attach command, which links a replication
// group's connection metadata into a secret.
func NewAttachCommand(rt *Runtime) *cobra.Command {
	var (
		secretID   string
		targetID   string
		targetType string
	)

	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Attach a replication group's connection metadata to a secret",
		Long: `Read the replication group's primary endpoints and transit encryption
flag and merge them into the secret's current value, preserving any
pre-populated properties such as a generated password.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := rt.secretStore(ctx)
			if err != nil {
				return err
			}
			clusterClient, err := rt.clusterClient(ctx)
			if err != nil {
				return err
			}

			return attacher.New(store, clusterClient, rt.Logger).
				Attach(ctx, secretID, targetID, targetType)
		},
	}

	cmd.Flags().StringVar(&secretID, "secret-id", "", "Secret ARN or name (required)")
	cmd.Flags().StringVar(&targetID, "target-id", "", "Replication group id (required)")
	cmd.Flags().StringVar(&targetType, "target-type", attacher.ResourceType, "Target resource type")
	_ = cmd.MarkFlagRequired("secret-id")
	_ = cmd.MarkFlagRequired("target-id")

	return cmd
}
