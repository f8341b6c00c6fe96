package service

import (
	"context"
	"errors"

	"github.com/dasmlab/pagetrans/pkg/content"
	"github.com/dasmlab/pagetrans/pkg/fetch"
	"github.com/dasmlab/pagetrans/pkg/translate"
)

// ErrorKind classifies a translation failure for transport layers.
type ErrorKind string

const (
	ErrorKindNone           ErrorKind = ""
	ErrorKindInvalidConfig  ErrorKind = "invalid_config"
	ErrorKindNoContent      ErrorKind = "no_content"
	ErrorKindProviderFailed ErrorKind = "provider_request_failed"
	ErrorKindMalformed      ErrorKind = "malformed_response"
	ErrorKindFetchFailed    ErrorKind = "fetch_failed"
	ErrorKindDeadline       ErrorKind = "deadline_exceeded"
	ErrorKindInternal       ErrorKind = "internal"
)

var (
	// ErrProviderRequired is returned when a request names no provider.
	ErrProviderRequired = errors.New("provider or provider_id is required")
	// ErrUnknownProvider is returned when provider_id is not in the registry.
	ErrUnknownProvider = errors.New("unknown provider")
)

// ClassifyError maps err onto an ErrorKind.
func ClassifyError(err error) ErrorKind {
	var (
		reqErr       *translate.ProviderRequestFailedError
		malformedErr *translate.MalformedResponseError
		statusErr    *fetch.StatusError
	)
	switch {
	case err == nil:
		return ErrorKindNone
	case translate.IsConfigError(err),
		errors.Is(err, ErrProviderRequired),
		errors.Is(err, ErrUnknownProvider):
		return ErrorKindInvalidConfig
	case errors.Is(err, content.ErrNoContentFound):
		return ErrorKindNoContent
	case errors.As(err, &reqErr):
		return ErrorKindProviderFailed
	case errors.As(err, &malformedErr):
		return ErrorKindMalformed
	case errors.As(err, &statusErr),
		errors.Is(err, fetch.ErrBlockedURL),
		errors.Is(err, fetch.ErrDisallowedByRobots),
		errors.Is(err, fetch.ErrUnsupportedContent),
		errors.Is(err, fetch.ErrBodyTooLarge):
		return ErrorKindFetchFailed
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorKindDeadline
	default:
		return ErrorKindInternal
	}
}
