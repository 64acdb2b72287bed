package rotator

import "fmt"

// Step is one of the four phases of secret rotation.
type Step string

const (
	// StepCreate stages a new candidate auth token as AWSPENDING.
	StepCreate Step = "createSecret"

	// StepSet applies the AWSPENDING auth token to the replication group.
	StepSet Step = "setSecret"

	// StepTest verifies the replication group accepts the AWSPENDING token.
	StepTest Step = "testSecret"

	// StepFinish moves the AWSCURRENT label to the AWSPENDING version.
	StepFinish Step = "finishSecret"
)

// MarshalText implements encoding.TextMarshaler.
func (s Step) MarshalText() ([]byte, error) {
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, rejecting unknown steps.
func (s *Step) UnmarshalText(text []byte) error {
	*s = Step(text)
	switch *s {
	case StepCreate, StepSet, StepTest, StepFinish:
		return nil
	default:
		return fmt.Errorf("unknown rotation step: %s", text)
	}
}

// Event is the rotation request delivered by Secrets Manager.
type Event struct {
	// SecretID is the ARN or name of the secret being rotated.
	SecretID string `json:"SecretId"`

	// ClientRequestToken is the version id of the in-progress rotation.
	ClientRequestToken string `json:"ClientRequestToken"`

	// Step is the rotation phase to execute.
	Step Step `json:"Step"`
}
