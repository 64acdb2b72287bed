// Package record defines the connection record persisted as the secret value
// for a replication group, and the validation rules rotation depends on.
//
// The wire format is JSON with a fixed set of known keys plus arbitrary
// pass-through properties:
//
//	{
//	  "_metadata": { "id": "<replication group id>" },
//	  "endpoints": [ "<host>:<port>", ... ],
//	  "ssl": <bool>,
//	  "password": "<auth token>",
//	  ...any other properties, preserved verbatim...
//	}
//
// Unknown keys survive every read-modify-write cycle untouched.
package record

import (
	"encoding/json"
	"fmt"
)

// JSON keys for the known fields.
const (
	keyMetadata  = "_metadata"
	keyEndpoints = "endpoints"
	keySSL       = "ssl"
	keyPassword  = "password"
)

// Metadata identifies the replication group a record belongs to. It is written
// once, when the secret is attached to the group, and never rewritten by
// rotation.
type Metadata struct {
	ID string `json:"id"`
}

// Record is the structured connection record stored in the secret.
type Record struct {
	Metadata  Metadata
	Endpoints []string
	SSL       bool
	Password  string

	// Extra holds every property outside the known set, keyed by its
	// original JSON name. Values are kept as raw JSON so round-trips never
	// reformat or lose them.
	Extra map[string]json.RawMessage

	// present tracks which known keys appeared in the source document, so
	// validation can distinguish "missing" from zero values.
	present map[string]bool
}

// FieldError reports a required record field that is missing from the secret
// value.
type FieldError struct {
	Field string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s key is missing from secret value", e.Field)
}

// ParseError reports a secret value that is not a valid JSON record.
type ParseError struct {
	Err error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("secret value is not a valid connection record: %v", e.Err)
}

func (e ParseError) Unwrap() error {
	return e.Err
}

// Parse decodes a secret value into a Record. Known keys are lifted into the
// struct fields; everything else lands in Extra. Parse does not validate
// required fields, call Validate for that.
func Parse(data []byte) (*Record, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, ParseError{Err: err}
	}

	rec := &Record{
		Extra:   make(map[string]json.RawMessage),
		present: make(map[string]bool),
	}

	for key, value := range raw {
		var err error
		switch key {
		case keyMetadata:
			err = json.Unmarshal(value, &rec.Metadata)
		case keyEndpoints:
			err = json.Unmarshal(value, &rec.Endpoints)
		case keySSL:
			err = json.Unmarshal(value, &rec.SSL)
		case keyPassword:
			err = json.Unmarshal(value, &rec.Password)
		default:
			rec.Extra[key] = value
			continue
		}
		if err != nil {
			return nil, ParseError{Err: fmt.Errorf("key %q: %w", key, err)}
		}
		rec.present[key] = true
	}

	return rec, nil
}

// Marshal encodes the record back to its wire format. Known fields are written
// only if they were present in the source or have been set through the
// setters, so a partially populated record (e.g. password only, before
// attachment) round-trips without inventing keys.
func (r *Record) Marshal() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.Extra)+4)
	for key, value := range r.Extra {
		out[key] = value
	}

	put := func(key string, v any) error {
		if !r.present[key] {
			return nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		out[key] = data
		return nil
	}

	if err := put(keyMetadata, r.Metadata); err != nil {
		return nil, err
	}
	if err := put(keyEndpoints, r.Endpoints); err != nil {
		return nil, err
	}
	if err := put(keySSL, r.SSL); err != nil {
		return nil, err
	}
	if err := put(keyPassword, r.Password); err != nil {
		return nil, err
	}

	return json.Marshal(out)
}

// Validate checks that the record carries everything rotation needs: the
// replication group id, at least one endpoint, the ssl flag, and a password.
// The first missing field is reported as a FieldError.
func (r *Record) Validate() error {
	for _, key := range []string{keyMetadata, keyEndpoints, keySSL, keyPassword} {
		if !r.present[key] {
			return FieldError{Field: key}
		}
	}
	if r.Metadata.ID == "" {
		return FieldError{Field: keyMetadata + ".id"}
	}
	if len(r.Endpoints) == 0 {
		return FieldError{Field: keyEndpoints}
	}
	return nil
}

// SetPassword replaces the auth token, marking the key present.
func (r *Record) SetPassword(password string) {
	r.Password = password
	r.markPresent(keyPassword)
}

// SetTarget writes the attachment-time fields: group id, endpoint list, and
// transit encryption flag. Existing values for these keys are overwritten;
// everything else is left alone.
func (r *Record) SetTarget(groupID string, endpoints []string, ssl bool) {
	r.Metadata.ID = groupID
	r.Endpoints = endpoints
	r.SSL = ssl
	r.markPresent(keyMetadata)
	r.markPresent(keyEndpoints)
	r.markPresent(keySSL)
}

// Clone returns a deep copy, used when deriving a pending record from the
// current one.
func (r *Record) Clone() *Record {
	dup := &Record{
		Metadata:  r.Metadata,
		SSL:       r.SSL,
		Password:  r.Password,
		Endpoints: append([]string(nil), r.Endpoints...),
		Extra:     make(map[string]json.RawMessage, len(r.Extra)),
		present:   make(map[string]bool, len(r.present)),
	}
	for key, value := range r.Extra {
		dup.Extra[key] = append(json.RawMessage(nil), value...)
	}
	for key := range r.present {
		dup.present[key] = true
	}
	return dup
}

func (r *Record) markPresent(key string) {
	if r.present == nil {
		r.present = make(map[string]bool)
	}
	r.present[key] = true
}
