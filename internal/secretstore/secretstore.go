// Package secretstore wraps the AWS Secrets Manager operations the rotation
// protocol depends on: fetching connection records by staging label, staging
// new pending versions, moving the AWSCURRENT label, and generating auth
// tokens that satisfy the ElastiCache credential grammar.
package secretstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/systmms/cacherotate/internal/record"
)

// Stage is a Secrets Manager staging label.
type Stage string

// The three staging labels the rotation protocol touches. At most one version
// per secret holds each label at a time.
const (
	StageCurrent  Stage = "AWSCURRENT"
	StagePending  Stage = "AWSPENDING"
	StagePrevious Stage = "AWSPREVIOUS"
)

// Auth tokens must be printable ASCII; the only permitted special characters
// are !, &, #, $, ^, <, >, and -. Everything else printable is excluded from
// generation.
const (
	authTokenLength   = 64
	excludeCharacters = "\"%'()*+,./:;=?@[\\]_`{|}~"
)

// API is the subset of the Secrets Manager client used by this package,
// extracted so tests can substitute a fake.
type API interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
	UpdateSecretVersionStage(ctx context.Context, params *secretsmanager.UpdateSecretVersionStageInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretVersionStageOutput, error)
	GetRandomPassword(ctx context.Context, params *secretsmanager.GetRandomPasswordInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetRandomPasswordOutput, error)
}

// NotFoundError indicates the secret, or the requested version/stage of it,
// does not exist.
type NotFoundError struct {
	SecretID string
	Stage    Stage
	Token    string
}

func (e NotFoundError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("secret %s has no version %s staged %s", e.SecretID, e.Token, e.Stage)
	}
	if e.Stage != "" {
		return fmt.Sprintf("secret %s has no version staged %s", e.SecretID, e.Stage)
	}
	return fmt.Sprintf("secret %s not found", e.SecretID)
}

// RotationDisabledError indicates the secret is not enabled for rotation.
type RotationDisabledError struct {
	SecretID string
}

func (e RotationDisabledError) Error() string {
	return fmt.Sprintf("secret %s is not enabled for rotation", e.SecretID)
}

// Stages maps version ids to the staging labels attached to them.
type Stages map[string][]string

// Has reports whether the given version carries the given label.
func (s Stages) Has(versionID string, stage Stage) bool {
	for _, label := range s[versionID] {
		if label == string(stage) {
			return true
		}
	}
	return false
}

// Holder returns the version id currently carrying the given label, or "".
func (s Stages) Holder(stage Stage) string {
	for versionID := range s {
		if s.Has(versionID, stage) {
			return versionID
		}
	}
	return ""
}

// Description is the rotation-relevant slice of DescribeSecret output.
type Description struct {
	RotationEnabled bool
	Stages          Stages
}

// Store provides record-level access to a Secrets Manager secret.
type Store struct {
	client API
}

// Options configures client construction. Endpoint and static credentials
// exist for LocalStack and tests; in production the defaults resolve from the
// environment.
type Options struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// New builds a Store with a real Secrets Manager client.
func New(ctx context.Context, opts Options) (*Store, error) {
	var configOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		configOpts = append(configOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var clientOpts []func(*secretsmanager.Options)
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		})
	}

	return NewFromClient(secretsmanager.NewFromConfig(cfg, clientOpts...)), nil
}

// NewFromClient wraps an existing client, real or fake.
func NewFromClient(client API) *Store {
	return &Store{client: client}
}

// Describe fetches the secret's rotation flag and stage map.
func (s *Store) Describe(ctx context.Context, secretID string) (Description, error) {
	out, err := s.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		if isNotFound(err) {
			return Description{}, NotFoundError{SecretID: secretID}
		}
		return Description{}, fmt.Errorf("describing secret %s: %w", secretID, err)
	}

	desc := Description{
		// Absent flag means rotation was never configured; only an
		// explicit false disables it.
		RotationEnabled: out.RotationEnabled == nil || *out.RotationEnabled,
		Stages:          make(Stages, len(out.VersionIdsToStages)),
	}
	for versionID, labels := range out.VersionIdsToStages {
		desc.Stages[versionID] = append([]string(nil), labels...)
	}
	return desc, nil
}

// GetRecord fetches and parses the connection record at the given stage.
// A non-empty token additionally pins the exact version id.
func (s *Store) GetRecord(ctx context.Context, secretID string, stage Stage, token string) (*record.Record, error) {
	input := &secretsmanager.GetSecretValueInput{
		SecretId:     aws.String(secretID),
		VersionStage: aws.String(string(stage)),
	}
	if token != "" {
		input.VersionId = aws.String(token)
	}

	out, err := s.client.GetSecretValue(ctx, input)
	if err != nil {
		if isNotFound(err) {
			return nil, NotFoundError{SecretID: secretID, Stage: stage, Token: token}
		}
		return nil, fmt.Errorf("getting secret %s stage %s: %w", secretID, stage, err)
	}
	if out.SecretString == nil {
		return nil, record.ParseError{Err: fmt.Errorf("secret %s has no string value", secretID)}
	}

	return record.Parse([]byte(*out.SecretString))
}

// PutPendingRecord commits the record as a new version of the secret, staged
// AWSPENDING under the given client request token. Re-putting an identical
// value under the same token is accepted by the service, which keeps the
// operation safe to retry.
func (s *Store) PutPendingRecord(ctx context.Context, secretID, token string, rec *record.Record) error {
	data, err := rec.Marshal()
	if err != nil {
		return fmt.Errorf("encoding record for secret %s: %w", secretID, err)
	}

	_, err = s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:           aws.String(secretID),
		ClientRequestToken: aws.String(token),
		SecretString:       aws.String(string(data)),
		VersionStages:      []string{string(StagePending)},
	})
	if err != nil {
		return fmt.Errorf("putting pending version %s of secret %s: %w", token, secretID, err)
	}
	return nil
}

// PutCurrentRecord commits the record as the AWSCURRENT version of the secret.
// Used by attachment, never by rotation.
func (s *Store) PutCurrentRecord(ctx context.Context, secretID string, rec *record.Record) error {
	data, err := rec.Marshal()
	if err != nil {
		return fmt.Errorf("encoding record for secret %s: %w", secretID, err)
	}

	_, err = s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:      aws.String(secretID),
		SecretString:  aws.String(string(data)),
		VersionStages: []string{string(StageCurrent)},
	})
	if err != nil {
		return fmt.Errorf("putting current version of secret %s: %w", secretID, err)
	}
	return nil
}

// PromoteCurrent atomically moves the AWSCURRENT label to the given version.
// When fromVersion is non-empty the label is removed from it in the same call;
// the service demotes that version to AWSPREVIOUS as part of the move.
func (s *Store) PromoteCurrent(ctx context.Context, secretID, toVersion, fromVersion string) error {
	input := &secretsmanager.UpdateSecretVersionStageInput{
		SecretId:        aws.String(secretID),
		VersionStage:    aws.String(string(StageCurrent)),
		MoveToVersionId: aws.String(toVersion),
	}
	if fromVersion != "" {
		input.RemoveFromVersionId = aws.String(fromVersion)
	}

	if _, err := s.client.UpdateSecretVersionStage(ctx, input); err != nil {
		return fmt.Errorf("moving %s to version %s of secret %s: %w", StageCurrent, toVersion, secretID, err)
	}
	return nil
}

// GenerateAuthToken asks the service for a fresh 64-character credential drawn
// from the character set ElastiCache accepts.
func (s *Store) GenerateAuthToken(ctx context.Context) (string, error) {
	out, err := s.client.GetRandomPassword(ctx, &secretsmanager.GetRandomPasswordInput{
		PasswordLength:    aws.Int64(authTokenLength),
		ExcludeCharacters: aws.String(excludeCharacters),
	})
	if err != nil {
		return "", fmt.Errorf("generating auth token: %w", err)
	}
	if out.RandomPassword == nil || *out.RandomPassword == "" {
		return "", errors.New("generating auth token: empty response")
	}
	return *out.RandomPassword, nil
}

// IsNotFound reports whether err is this package's or the service's
// resource-not-found error.
func IsNotFound(err error) bool {
	var notFound NotFoundError
	return errors.As(err, &notFound) || isNotFound(err)
}

func isNotFound(err error) bool {
	var resourceNotFound *types.ResourceNotFoundException
	return errors.As(err, &resourceNotFound)
}
