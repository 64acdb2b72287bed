package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/cacherotate/internal/probe"
	"github.com/systmms/cacherotate/internal/rotator"
)

// NewRotateCommand creates the rotate command, which runs one rotation step
// or a full cycle against a secret.
func NewRotateCommand(rt *Runtime) *cobra.Command {
	var (
		secretID string
		token    string
		stepName string
	)

	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Run rotation steps for a secret version",
		Long: `Run a single rotation step (createSecret, setSecret, testSecret,
finishSecret) for a secret version, or "all" to run the full cycle in order.

The version identified by --token must already be staged AWSPENDING, the way
Secrets Manager stages it when a rotation is started.`,
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
			rot := rotator.New(store, clusterClient, probe.NewRedisProber(rt.Logger), rt.Logger)

			steps := []rotator.Step{rotator.StepCreate, rotator.StepSet, rotator.StepTest, rotator.StepFinish}
			if stepName != "all" {
				var step rotator.Step
				if err := step.UnmarshalText([]byte(stepName)); err != nil {
					return err
				}
				steps = []rotator.Step{step}
			}

			for _, step := range steps {
				rt.Logger.Info().Str("step", string(step)).Msg("running rotation step")
				err := rot.Handle(ctx, rotator.Event{
					SecretID:           secretID,
					ClientRequestToken: token,
					Step:               step,
				})
				if err != nil {
					return fmt.Errorf("step %s: %w", step, err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&secretID, "secret-id", "", "Secret ARN or name (required)")
	cmd.Flags().StringVar(&token, "token", "", "Version id of the rotation in progress (required)")
	cmd.Flags().StringVar(&stepName, "step", "all", "Rotation step to run, or \"all\"")
	_ = cmd.MarkFlagRequired("secret-id")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}
