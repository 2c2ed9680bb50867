package entity

import (
	"fmt"
	"strings"
)

// MissingFieldError reports a required profile field that has no value.
type MissingFieldError struct {
	Profile string
	Field   string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("network %q: required field %q is missing", e.Profile, e.Field)
}

// InvalidFieldError reports a profile field whose value cannot be used.
type InvalidFieldError struct {
	Profile string
	Field   string
	Value   string
	Reason  string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("network %q: field %q has invalid value %q: %s", e.Profile, e.Field, e.Value, e.Reason)
}

// NotFoundError is returned when a requested network name has no profile.
type NotFoundError struct {
	Name  string
	Known []string
}

func (e *NotFoundError) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("network %q is not configured (no networks are configured)", e.Name)
	}
	return fmt.Sprintf("network %q is not configured (known networks: %s)", e.Name, strings.Join(e.Known, ", "))
}

// InvalidCredentialError reports a signing credential that is absent, malformed,
// or does not derive the declared sending address. The message never contains the credential.
type InvalidCredentialError struct {
	Profile string
	Reason  string
	Err     error
}

func (e *InvalidCredentialError) Error() string {
	msg := "invalid signing credential"
	if e.Profile != "" {
		msg = fmt.Sprintf("network %q: %s", e.Profile, msg)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidCredentialError) Unwrap() error {
	return e.Err
}

// DuplicateProfileError is returned when two configuration sources define the same network name.
type DuplicateProfileError struct {
	Name    string
	Sources []string
}

func (e *DuplicateProfileError) Error() string {
	return fmt.Sprintf("network %q is defined more than once (%s)", e.Name, strings.Join(e.Sources, ", "))
}

// EnvNameCollisionError is returned when several network names map to the same
// environment variable prefix, e.g. "zone-1" and "zone_1".
type EnvNameCollisionError struct {
	Prefix   string
	Profiles []string
}

func (e *EnvNameCollisionError) Error() string {
	return fmt.Sprintf("networks %s share the environment variable prefix %s; rename all but one", strings.Join(e.Profiles, ", "), e.Prefix)
}

// NetworkMismatchError is returned when a node reports a different network id than its profile declares.
type NetworkMismatchError struct {
	Profile  string
	Expected uint64
	Actual   uint64
	// Matches names the configured network that does declare Actual, if any.
	Matches string
}

func (e *NetworkMismatchError) Error() string {
	msg := fmt.Sprintf("network %q: node reports network id %d, expected %d", e.Profile, e.Actual, e.Expected)
	if e.Matches != "" {
		msg += fmt.Sprintf(" (matches configured network %q)", e.Matches)
	}
	return msg
}
