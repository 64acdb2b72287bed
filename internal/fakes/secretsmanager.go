// Package fakes provides in-memory doubles for the AWS clients and the data
// plane probe, with enough staging-label semantics to exercise the rotation
// protocol end to end.
package fakes

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
)

// FakeVersion is one version of a fake secret. A version can exist in the
// stage map without a value, the way the service pre-stages the AWSPENDING
// token before the rotation function has put anything.
type FakeVersion struct {
	SecretString string
	HasValue     bool
	Stages       []string
}

// FakeSecret holds the versions and rotation flag of a fake secret.
type FakeSecret struct {
	RotationEnabled *bool
	Versions        map[string]*FakeVersion
}

// FakeSecretsManager implements the secretstore.API interface in memory.
//
// Staging labels behave like the real service: at most one version holds each
// of AWSCURRENT, AWSPENDING, and AWSPREVIOUS, and moving AWSCURRENT demotes
// the old holder to AWSPREVIOUS.
type FakeSecretsManager struct {
	mu      sync.Mutex
	Secrets map[string]*FakeSecret

	// Errors maps an operation name (e.g. "GetSecretValue") to an error
	// returned unconditionally for that operation.
	Errors map[string]error

	// RandomPassword, when set, is returned by GetRandomPassword instead
	// of a generated value.
	RandomPassword string

	// PutCalls counts PutSecretValue invocations.
	PutCalls int
	// StageMoves counts UpdateSecretVersionStage invocations.
	StageMoves int

	versionSeq int
}

// NewFakeSecretsManager creates an empty fake.
func NewFakeSecretsManager() *FakeSecretsManager {
	return &FakeSecretsManager{
		Secrets: make(map[string]*FakeSecret),
		Errors:  make(map[string]error),
	}
}

// AddSecret creates a secret whose given value is staged AWSCURRENT under the
// given version id.
func (f *FakeSecretsManager) AddSecret(name, versionID, value string) *FakeSecret {
	f.mu.Lock()
	defer f.mu.Unlock()
	sec := &FakeSecret{
		Versions: map[string]*FakeVersion{
			versionID: {SecretString: value, HasValue: true, Stages: []string{"AWSCURRENT"}},
		},
	}
	f.Secrets[name] = sec
	return sec
}

// AddVersion adds a version with explicit stages to an existing secret.
func (f *FakeSecretsManager) AddVersion(name, versionID, value string, stages ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name].Versions[versionID] = &FakeVersion{SecretString: value, HasValue: true, Stages: stages}
}

// AddStagedToken registers a version id in the stage map without a value,
// mirroring how the service stages AWSPENDING when a rotation starts.
func (f *FakeSecretsManager) AddStagedToken(name, versionID string, stages ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(stages) == 0 {
		stages = []string{"AWSPENDING"}
	}
	f.Secrets[name].Versions[versionID] = &FakeVersion{Stages: stages}
}

// DisableRotation marks the secret as not enabled for rotation.
func (f *FakeSecretsManager) DisableRotation(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name].RotationEnabled = aws.Bool(false)
}

// Version returns the named version, or nil.
func (f *FakeSecretsManager) Version(name, versionID string) *FakeVersion {
	f.mu.Lock()
	defer f.mu.Unlock()
	sec := f.Secrets[name]
	if sec == nil {
		return nil
	}
	return sec.Versions[versionID]
}

// Holder returns the version id carrying the stage, or "".
func (f *FakeSecretsManager) Holder(name, stage string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	sec := f.Secrets[name]
	if sec == nil {
		return ""
	}
	return holder(sec, stage)
}

func notFound(format string, args ...any) error {
	return &types.ResourceNotFoundException{Message: aws.String(fmt.Sprintf(format, args...))}
}

func holder(sec *FakeSecret, stage string) string {
	for id, v := range sec.Versions {
		for _, s := range v.Stages {
			if s == stage {
				return id
			}
		}
	}
	return ""
}

func removeStage(v *FakeVersion, stage string) {
	out := v.Stages[:0]
	for _, s := range v.Stages {
		if s != stage {
			out = append(out, s)
		}
	}
	v.Stages = out
}

func (f *FakeSecretsManager) detachStage(sec *FakeSecret, stage string) {
	if id := holder(sec, stage); id != "" {
		removeStage(sec.Versions[id], stage)
	}
}

// GetSecretValue implements secretstore.API.
func (f *FakeSecretsManager) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["GetSecretValue"]; err != nil {
		return nil, err
	}

	name := aws.ToString(params.SecretId)
	sec := f.Secrets[name]
	if sec == nil {
		return nil, notFound("secret %s not found", name)
	}

	stage := aws.ToString(params.VersionStage)
	if stage == "" {
		stage = "AWSCURRENT"
	}

	versionID := aws.ToString(params.VersionId)
	if versionID == "" {
		versionID = holder(sec, stage)
	}
	version := sec.Versions[versionID]
	if version == nil || !version.HasValue {
		return nil, notFound("secret %s has no value for stage %s", name, stage)
	}
	if !hasStage(version, stage) {
		return nil, notFound("version %s of secret %s is not staged %s", versionID, name, stage)
	}

	return &secretsmanager.GetSecretValueOutput{
		Name:          aws.String(name),
		VersionId:     aws.String(versionID),
		VersionStages: append([]string(nil), version.Stages...),
		SecretString:  aws.String(version.SecretString),
	}, nil
}

func hasStage(v *FakeVersion, stage string) bool {
	for _, s := range v.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// PutSecretValue implements secretstore.API. Re-putting the same value under
// the same client request token is a no-op, like the real service.
func (f *FakeSecretsManager) PutSecretValue(_ context.Context, params *secretsmanager.PutSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["PutSecretValue"]; err != nil {
		return nil, err
	}
	f.PutCalls++

	name := aws.ToString(params.SecretId)
	sec := f.Secrets[name]
	if sec == nil {
		return nil, notFound("secret %s not found", name)
	}

	versionID := aws.ToString(params.ClientRequestToken)
	if versionID == "" {
		f.versionSeq++
		versionID = fmt.Sprintf("fake-version-%d", f.versionSeq)
	}

	if existing := sec.Versions[versionID]; existing != nil && existing.HasValue {
		if existing.SecretString == aws.ToString(params.SecretString) {
			return &secretsmanager.PutSecretValueOutput{VersionId: aws.String(versionID)}, nil
		}
		return nil, fmt.Errorf("version %s of secret %s already exists with a different value", versionID, name)
	}

	stages := params.VersionStages
	if len(stages) == 0 {
		stages = []string{"AWSCURRENT"}
	}
	for _, stage := range stages {
		if stage == "AWSCURRENT" {
			// Putting a new AWSCURRENT demotes the old holder.
			if old := holder(sec, "AWSCURRENT"); old != "" {
				f.detachStage(sec, "AWSPREVIOUS")
				removeStage(sec.Versions[old], "AWSCURRENT")
				sec.Versions[old].Stages = append(sec.Versions[old].Stages, "AWSPREVIOUS")
			}
		} else {
			f.detachStage(sec, stage)
		}
	}
	sec.Versions[versionID] = &FakeVersion{
		SecretString: aws.ToString(params.SecretString),
		HasValue:     true,
		Stages:       append([]string(nil), stages...),
	}

	return &secretsmanager.PutSecretValueOutput{VersionId: aws.String(versionID)}, nil
}

// DescribeSecret implements secretstore.API.
func (f *FakeSecretsManager) DescribeSecret(_ context.Context, params *secretsmanager.DescribeSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["DescribeSecret"]; err != nil {
		return nil, err
	}

	name := aws.ToString(params.SecretId)
	sec := f.Secrets[name]
	if sec == nil {
		return nil, notFound("secret %s not found", name)
	}

	stages := make(map[string][]string, len(sec.Versions))
	for id, v := range sec.Versions {
		stages[id] = append([]string(nil), v.Stages...)
	}
	return &secretsmanager.DescribeSecretOutput{
		Name:               aws.String(name),
		RotationEnabled:    sec.RotationEnabled,
		VersionIdsToStages: stages,
	}, nil
}

// UpdateSecretVersionStage implements secretstore.API. Moving AWSCURRENT
// demotes the version it was removed from to AWSPREVIOUS.
func (f *FakeSecretsManager) UpdateSecretVersionStage(_ context.Context, params *secretsmanager.UpdateSecretVersionStageInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.UpdateSecretVersionStageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["UpdateSecretVersionStage"]; err != nil {
		return nil, err
	}
	f.StageMoves++

	name := aws.ToString(params.SecretId)
	sec := f.Secrets[name]
	if sec == nil {
		return nil, notFound("secret %s not found", name)
	}

	stage := aws.ToString(params.VersionStage)
	to := sec.Versions[aws.ToString(params.MoveToVersionId)]
	if to == nil {
		return nil, notFound("version %s of secret %s not found", aws.ToString(params.MoveToVersionId), name)
	}

	if from := aws.ToString(params.RemoveFromVersionId); from != "" {
		fromVersion := sec.Versions[from]
		if fromVersion == nil || !hasStage(fromVersion, stage) {
			return nil, fmt.Errorf("version %s of secret %s does not carry stage %s", from, name, stage)
		}
		removeStage(fromVersion, stage)
		if stage == "AWSCURRENT" {
			f.detachStage(sec, "AWSPREVIOUS")
			fromVersion.Stages = append(fromVersion.Stages, "AWSPREVIOUS")
		}
	}
	removeStage(to, stage)
	to.Stages = append(to.Stages, stage)

	return &secretsmanager.UpdateSecretVersionStageOutput{Name: aws.String(name)}, nil
}

// GetRandomPassword implements secretstore.API, honoring the requested length
// and excluded character set.
func (f *FakeSecretsManager) GetRandomPassword(_ context.Context, params *secretsmanager.GetRandomPasswordInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetRandomPasswordOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Errors["GetRandomPassword"]; err != nil {
		return nil, err
	}
	if f.RandomPassword != "" {
		return &secretsmanager.GetRandomPasswordOutput{RandomPassword: aws.String(f.RandomPassword)}, nil
	}

	length := int(aws.ToInt64(params.PasswordLength))
	if length <= 0 {
		length = 32
	}
	exclude := aws.ToString(params.ExcludeCharacters)

	var charset []byte
	for ch := byte('!'); ch <= '~'; ch++ {
		if !strings.ContainsRune(exclude, rune(ch)) {
			charset = append(charset, ch)
		}
	}

	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return nil, err
		}
		out[i] = charset[n.Int64()]
	}
	return &secretsmanager.GetRandomPasswordOutput{RandomPassword: aws.String(string(out))}, nil
}
