package translate

import (
	"context"
)

// Translator sends markup to a translation backend and returns the
// translated markup. Implementations issue at most one upstream call per
// invocation and never retry.
type Translator interface {
	Translate(ctx context.Context, req Request) (string, error)
}

// Request is one translation call: a provider and the markup to translate.
// It is immutable once built.
type Request struct {
	provider ProviderConfig
	markup   string
}

// NewRequest validates cfg and pairs it with markup.
func NewRequest(cfg ProviderConfig, markup string) (Request, error) {
	normalized, err := cfg.Normalize()
	if err != nil {
		return Request{}, err
	}
	return Request{provider: normalized, markup: markup}, nil
}

// Provider returns the provider configuration of the request.
func (r Request) Provider() ProviderConfig {
	return r.provider
}

// Markup returns the source markup.
func (r Request) Markup() string {
	return r.markup
}

// Result is the outcome of a translation: translated markup or an error,
// never both.
type Result struct {
	markup string
	err    error
}

// Success wraps translated markup.
func Success(markup string) Result {
	return Result{markup: markup}
}

// Failure wraps a translation error.
func Failure(err error) Result {
	return Result{err: err}
}

// OK reports whether the translation succeeded.
func (r Result) OK() bool {
	return r.err == nil
}

// Markup returns the translated markup and whether the result is a success.
func (r Result) Markup() (string, bool) {
	return r.markup, r.err == nil
}

// Err returns the failure, or nil on success.
func (r Result) Err() error {
	return r.err
}

// Execute runs t and folds the outcome into a Result.
func Execute(ctx context.Context, t Translator, req Request) Result {
	markup, err := t.Translate(ctx, req)
	if err != nil {
		return Failure(err)
	}
	return Success(markup)
}
