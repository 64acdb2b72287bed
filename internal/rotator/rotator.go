// Package rotator implements the four-step auth token rotation protocol for a
// replication group secret.
//
// Every step is idempotent: the trigger may deliver a step zero, one, or many
// times, and partial failures are recovered by re-delivery. Shared
// preconditions run before any step and make re-delivery safe:
//
//  1. the secret must be enabled for rotation,
//  2. the version token must be known to the secret,
//  3. a version already staged AWSCURRENT means the rotation is complete
//     (success, no side effect),
//  4. otherwise the version must be staged AWSPENDING.
//
// The ROTATE update strategy is used against the cluster so the outgoing
// token stays valid for a grace period; in-flight connections are never
// locked out.
package rotator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/systmms/cacherotate/internal/probe"
	"github.com/systmms/cacherotate/internal/record"
	"github.com/systmms/cacherotate/internal/secretstore"
)

// StageError indicates the version token is not staged correctly for the
// requested operation.
type StageError struct {
	SecretID string
	Token    string
	Reason   string
}

func (e StageError) Error() string {
	return fmt.Sprintf("secret %s version %s: %s", e.SecretID, e.Token, e.Reason)
}

// NoValidCredentialError indicates none of the pending, current, or previous
// credentials authenticate against the replication group. Rotation cannot
// proceed safely; operator intervention is required.
type NoValidCredentialError struct {
	SecretID string
}

func (e NoValidCredentialError) Error() string {
	return fmt.Sprintf("unable to connect with the pending, current, or previous credential of secret %s", e.SecretID)
}

// CredentialNotLiveError indicates the pending credential is not yet accepted
// by the replication group, so rotation must not advance to finishSecret.
type CredentialNotLiveError struct {
	SecretID string
	Token    string
}

func (e CredentialNotLiveError) Error() string {
	return fmt.Sprintf("pending credential of secret %s version %s is not accepted by the replication group", e.SecretID, e.Token)
}

// Store is the secret access surface the rotator needs.
type Store interface {
	Describe(ctx context.Context, secretID string) (secretstore.Description, error)
	GetRecord(ctx context.Context, secretID string, stage secretstore.Stage, token string) (*record.Record, error)
	PutPendingRecord(ctx context.Context, secretID, token string, rec *record.Record) error
	PromoteCurrent(ctx context.Context, secretID, toVersion, fromVersion string) error
	GenerateAuthToken(ctx context.Context) (string, error)
}

// Cluster is the management API surface the rotator needs.
type Cluster interface {
	RotateAuthToken(ctx context.Context, groupID, authToken string) error
}

// Rotator executes rotation steps against injected collaborators.
type Rotator struct {
	store   Store
	cluster Cluster
	prober  probe.Prober
	logger  zerolog.Logger
}

// New builds a Rotator.
func New(store Store, cl Cluster, prober probe.Prober, logger zerolog.Logger) *Rotator {
	return &Rotator{store: store, cluster: cl, prober: prober, logger: logger}
}

// Handle validates the shared preconditions and dispatches the step.
func (r *Rotator) Handle(ctx context.Context, event Event) error {
	secretID, token := event.SecretID, event.ClientRequestToken

	desc, err := r.store.Describe(ctx, secretID)
	if err != nil {
		return err
	}
	if !desc.RotationEnabled {
		return secretstore.RotationDisabledError{SecretID: secretID}
	}
	if _, known := desc.Stages[token]; !known {
		return StageError{SecretID: secretID, Token: token, Reason: "has no stage for rotation"}
	}
	if desc.Stages.Has(token, secretstore.StageCurrent) {
		r.logger.Info().Str("secret", secretID).Str("version", token).
			Msg("version is already AWSCURRENT, nothing to do")
		return nil
	}
	if !desc.Stages.Has(token, secretstore.StagePending) {
		return StageError{SecretID: secretID, Token: token, Reason: "is not staged AWSPENDING for rotation"}
	}

	switch event.Step {
	case StepCreate:
		return r.createSecret(ctx, secretID, token)
	case StepSet:
		return r.setSecret(ctx, secretID, token)
	case StepTest:
		return r.testSecret(ctx, secretID, token)
	case StepFinish:
		return r.finishSecret(ctx, secretID, token)
	default:
		return fmt.Errorf("invalid rotation step %q for secret %s", event.Step, secretID)
	}
}

// createSecret ensures an AWSPENDING version exists for the token. The current
// record is always fetched and validated first; an existing pending version at
// this token makes the step a no-op.
func (r *Rotator) createSecret(ctx context.Context, secretID, token string) error {
	current, err := r.store.GetRecord(ctx, secretID, secretstore.StageCurrent, "")
	if err != nil {
		return err
	}
	if err := current.Validate(); err != nil {
		return fmt.Errorf("current record of secret %s: %w", secretID, err)
	}

	_, err = r.store.GetRecord(ctx, secretID, secretstore.StagePending, token)
	if err == nil {
		r.logger.Info().Str("secret", secretID).Str("version", token).
			Msg("pending version already exists")
		return nil
	}
	if !secretstore.IsNotFound(err) {
		return err
	}

	authToken, err := r.store.GenerateAuthToken(ctx)
	if err != nil {
		return err
	}

	pending := current.Clone()
	pending.SetPassword(authToken)
	if err := r.store.PutPendingRecord(ctx, secretID, token, pending); err != nil {
		return err
	}
	r.logger.Info().Str("secret", secretID).Str("version", token).
		Msg("staged new pending auth token")
	return nil
}

// setSecret applies the pending auth token to the replication group. If the
// pending credential already authenticates, a previous invocation got far
// enough and the step is a no-op. Otherwise one of the existing credentials
// must still work before the modification is issued; if none do, the step
// fails without guessing.
func (r *Rotator) setSecret(ctx context.Context, secretID, token string) error {
	pending, err := r.store.GetRecord(ctx, secretID, secretstore.StagePending, token)
	if err != nil {
		return err
	}
	if err := pending.Validate(); err != nil {
		return fmt.Errorf("pending record of secret %s: %w", secretID, err)
	}

	if r.prober.Ping(ctx, pending) {
		r.logger.Info().Str("secret", secretID).Str("version", token).
			Msg("pending credential is already live")
		return nil
	}

	live, err := r.anyExistingCredentialLive(ctx, secretID)
	if err != nil {
		return err
	}
	if !live {
		return NoValidCredentialError{SecretID: secretID}
	}

	groupID := pending.Metadata.ID
	r.logger.Info().Str("secret", secretID).Str("replication_group", groupID).
		Msg("rotating auth token on replication group")
	return r.cluster.RotateAuthToken(ctx, groupID, pending.Password)
}

func (r *Rotator) anyExistingCredentialLive(ctx context.Context, secretID string) (bool, error) {
	current, err := r.store.GetRecord(ctx, secretID, secretstore.StageCurrent, "")
	if err != nil {
		return false, err
	}
	if r.prober.Ping(ctx, current) {
		return true, nil
	}

	previous, err := r.store.GetRecord(ctx, secretID, secretstore.StagePrevious, "")
	if err != nil {
		// A missing AWSPREVIOUS version is normal on early rotations.
		if secretstore.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return r.prober.Ping(ctx, previous), nil
}

// testSecret verifies the pending credential is accepted by the replication
// group. Failure is fatal; rotation must not advance.
func (r *Rotator) testSecret(ctx context.Context, secretID, token string) error {
	pending, err := r.store.GetRecord(ctx, secretID, secretstore.StagePending, token)
	if err != nil {
		return err
	}
	if err := pending.Validate(); err != nil {
		return fmt.Errorf("pending record of secret %s: %w", secretID, err)
	}

	if !r.prober.Ping(ctx, pending) {
		return CredentialNotLiveError{SecretID: secretID, Token: token}
	}
	r.logger.Info().Str("secret", secretID).Str("version", token).
		Msg("pending credential verified")
	return nil
}

// finishSecret promotes the pending version to AWSCURRENT, demoting whichever
// version held the label. Already promoted means a no-op.
func (r *Rotator) finishSecret(ctx context.Context, secretID, token string) error {
	desc, err := r.store.Describe(ctx, secretID)
	if err != nil {
		return err
	}

	holder := desc.Stages.Holder(secretstore.StageCurrent)
	if holder == token {
		r.logger.Info().Str("secret", secretID).Str("version", token).
			Msg("version already marked AWSCURRENT")
		return nil
	}

	if err := r.store.PromoteCurrent(ctx, secretID, token, holder); err != nil {
		return err
	}
	r.logger.Info().Str("secret", secretID).Str("version", token).
		Msg("marked version AWSCURRENT")
	return nil
}
