package translate

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedProviderKind matches any UnsupportedProviderKindError.
	ErrUnsupportedProviderKind = errors.New("unsupported provider kind")
	// ErrMissingEndpoint is returned for kinds that have no default endpoint.
	ErrMissingEndpoint = errors.New("provider endpoint is required")
)

// UnsupportedProviderKindError reports a provider kind outside the supported set.
type UnsupportedProviderKindError struct {
	Kind string
}

func (e *UnsupportedProviderKindError) Error() string {
	return fmt.Sprintf("unsupported provider kind %q", e.Kind)
}

// Is makes errors.Is(err, ErrUnsupportedProviderKind) hold.
func (e *UnsupportedProviderKindError) Is(target error) bool {
	return target == ErrUnsupportedProviderKind
}

// ProviderRequestFailedError reports a non-success HTTP status from a provider.
// Message is the provider's own error message when one could be read.
type ProviderRequestFailedError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderRequestFailedError) Error() string {
	return e.Message
}

// MalformedResponseError reports a successful response whose body did not
// have the shape expected for the provider kind.
type MalformedResponseError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed %s response: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed %s response: %s", e.Provider, e.Reason)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err was raised before any request was sent
// because the provider configuration is unusable.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrUnsupportedProviderKind) || errors.Is(err, ErrMissingEndpoint)
}

// providerErrorMessage extracts error.message (or a string error field) from
// an error response body, falling back to a generic message for label.
func providerErrorMessage(body []byte, label string) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Error) > 0 {
		var detail struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &detail); err == nil && detail.Message != "" {
			return detail.Message
		}
		var plain string
		if err := json.Unmarshal(envelope.Error, &plain); err == nil && plain != "" {
			return plain
		}
	}
	return label + " request failed"
}
