package domain

import (
	"errors"
	"net/http"
)

// Store errors - 遠端儲存層錯誤
var (
	// ErrAccessNotGranted indicates a store was used before its client was built
	ErrAccessNotGranted = errors.New("access not granted: build the client before calling remote operations")

	// ErrNotFound indicates the requested remote entity does not exist
	ErrNotFound = errors.New("no file found with that name")

	// ErrAmbiguous indicates a name lookup matched more than one entity
	ErrAmbiguous = errors.New("too many files share that name")
)

// Record errors - 本地記錄錯誤
var (
	// ErrPrecondition indicates a call-time contract violation, detected before any request
	ErrPrecondition = errors.New("precondition violation")

	// ErrLocalIO indicates a local filesystem read or write failed
	ErrLocalIO = errors.New("local io error")
)

// Config errors - 設定檔錯誤
var (
	// ErrConfigNotFound indicates config file not found
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigInvalid indicates config file is malformed
	ErrConfigInvalid = errors.New("invalid config")

	// ErrCredentialsInvalid indicates the service account key file is unusable
	ErrCredentialsInvalid = errors.New("invalid credentials")
)

// RemoteError is any failure reported by a Google API that is not otherwise
// classified. Message holds the first structured error detail when the API
// returned one, else the top-level API message.
type RemoteError struct {
	Code    int
	Reason  string
	Message string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Code)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Is lets callers test a remote "not found" with errors.Is(err, ErrNotFound).
func (e *RemoteError) Is(target error) bool {
	if target == ErrNotFound {
		return e.IsNotFound()
	}
	return false
}

// IsNotFound reports whether the API said the entity does not exist
func (e *RemoteError) IsNotFound() bool {
	return e.Reason == "notFound" || e.Code == http.StatusNotFound
}
