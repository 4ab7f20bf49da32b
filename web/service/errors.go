package service

import "fmt"

type AuthErrorKind int

const (
	AuthInvalidCredentials AuthErrorKind = iota
	AuthNetwork
	AuthUnknown
)

func (k AuthErrorKind) String() string {
	switch k {
	case AuthInvalidCredentials:
		return "invalid_credentials"
	case AuthNetwork:
		return "network"
	}
	return "unknown"
}

// AuthError is returned by sign-in and sign-out. Its message is meant to be
// shown to the user.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	switch e.Kind {
	case AuthInvalidCredentials:
		return "invalid email or password"
	case AuthNetwork:
		return "identity service unreachable, try again later"
	}
	if e.Err != nil {
		return "sign-in failed: " + e.Err.Error()
	}
	return "sign-in failed"
}

func (e *AuthError) Unwrap() error { return e.Err }

type StoreErrorKind int

const (
	StoreNetwork StoreErrorKind = iota
	StorePermission
	StoreUnknown
)

func (k StoreErrorKind) String() string {
	switch k {
	case StoreNetwork:
		return "network"
	case StorePermission:
		return "permission"
	}
	return "unknown"
}

// StoreError is returned by every RecordGateway implementation.
type StoreError struct {
	Kind StoreErrorKind
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s employees: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ValidationError reports input rejected before any store call.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return "missing required field: " + e.Field
}

// RefreshError reports that a create or delete was confirmed by the store
// but the list re-read that follows it failed.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string {
	return "refresh after mutation: " + e.Err.Error()
}

func (e *RefreshError) Unwrap() error { return e.Err }
