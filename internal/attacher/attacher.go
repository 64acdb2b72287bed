// Package attacher links a freshly provisioned replication group to its
// secret: it merges the group's connection metadata (endpoints, transit
// encryption flag, group id) into the current secret value, preserving
// whatever is already there, typically a pre-generated password.
//
// The id, endpoint, and ssl fields are written here once and never rewritten
// by rotation. The operation is not transactional across the two services;
// callers retry the whole thing on failure, and re-running it recomputes the
// same result.
package attacher

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/systmms/cacherotate/internal/cluster"
	"github.com/systmms/cacherotate/internal/record"
	"github.com/systmms/cacherotate/internal/secretstore"
)

// ResourceType is the only target type that can be attached.
const ResourceType = "AWS::ElastiCache::ReplicationGroup"

// TypeError indicates a target type other than ResourceType was requested.
type TypeError struct {
	Got string
}

func (e TypeError) Error() string {
	return fmt.Sprintf("the specified target type %q is invalid, it must be %q", e.Got, ResourceType)
}

// Store is the secret access surface the attacher needs.
type Store interface {
	GetRecord(ctx context.Context, secretID string, stage secretstore.Stage, token string) (*record.Record, error)
	PutCurrentRecord(ctx context.Context, secretID string, rec *record.Record) error
}

// Cluster is the management API surface the attacher needs.
type Cluster interface {
	Describe(ctx context.Context, groupID string) (cluster.Info, error)
}

// Attacher performs the one-shot link between a secret and a replication
// group.
type Attacher struct {
	store   Store
	cluster Cluster
	logger  zerolog.Logger
}

// New builds an Attacher.
func New(store Store, cl Cluster, logger zerolog.Logger) *Attacher {
	return &Attacher{store: store, cluster: cl, logger: logger}
}

// Attach validates the target type, reads the current secret value, merges in
// the replication group's id, endpoints, and ssl flag, and commits the merged
// record as a new AWSCURRENT version. All pre-existing properties are
// preserved.
func (a *Attacher) Attach(ctx context.Context, secretID, targetID, targetType string) error {
	if targetType != ResourceType {
		return TypeError{Got: targetType}
	}

	// The secret must already exist; a generated password is typically the
	// only content at this point, so no record validation here.
	current, err := a.store.GetRecord(ctx, secretID, secretstore.StageCurrent, "")
	if err != nil {
		return err
	}

	info, err := a.cluster.Describe(ctx, targetID)
	if err != nil {
		return err
	}

	current.SetTarget(targetID, info.Endpoints, info.TransitEncryption)
	if err := a.store.PutCurrentRecord(ctx, secretID, current); err != nil {
		return err
	}

	a.logger.Info().Str("secret", secretID).Str("replication_group", targetID).
		Int("endpoints", len(info.Endpoints)).Bool("ssl", info.TransitEncryption).
		Msg("attached replication group to secret")
	return nil
}
