package translate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Client implements Translator over HTTP for every supported provider kind.
// It issues exactly one POST per call. The underlying http.Client carries no
// timeout, so the caller's context is the only bound on a call.
type Client struct {
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a provider client. A nil httpClient gets a client
// without a timeout; a nil logger gets a fresh logrus logger.
func NewClient(httpClient *http.Client, logger *logrus.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
	}
}

// Translate sends req.Markup() to the provider described by req.Provider()
// and returns the translated markup.
func (c *Client) Translate(ctx context.Context, req Request) (string, error) {
	cfg := req.Provider()
	log := c.logger.WithFields(logrus.Fields{
		"kind":        cfg.Kind,
		"provider":    cfg.DisplayName(),
		"markup_size": len(req.Markup()),
	})

	call, err := buildCall(cfg, req.Markup())
	if err != nil {
		log.WithError(err).Error("Failed to build provider request")
		return "", err
	}

	log = log.WithField("endpoint", redactEndpoint(call.endpoint))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, call.endpoint, bytes.NewReader(call.body))
	if err != nil {
		err = redactURLError(err)
		log.WithError(err).Error("Failed to create provider request")
		return "", fmt.Errorf("create request: %w", err)
	}
	for k, v := range call.headers {
		httpReq.Header.Set(k, v)
	}

	log.Debug("Sending translation request")
	startTime := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		err = redactURLError(err)
		recordProviderRequest(cfg.Kind, statusTransportError, time.Since(startTime), len(call.body), 0)
		log.WithError(err).Error("Provider request failed")
		return "", fmt.Errorf("%s request: %w", cfg.Kind.Label(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	duration := time.Since(startTime)
	if err != nil {
		recordProviderRequest(cfg.Kind, statusTransportError, duration, len(call.body), len(respBody))
		log.WithError(err).Error("Failed to read provider response")
		return "", fmt.Errorf("read %s response: %w", cfg.Kind.Label(), err)
	}

	log = log.WithFields(logrus.Fields{
		"status_code": resp.StatusCode,
		"duration_ms": duration.Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		recordProviderRequest(cfg.Kind, statusRejected, duration, len(call.body), len(respBody))
		reqErr := &ProviderRequestFailedError{
			Provider:   cfg.Kind.Label(),
			StatusCode: resp.StatusCode,
			Message:    providerErrorMessage(respBody, cfg.Kind.Label()),
		}
		log.WithError(reqErr).Error("Provider returned non-success status")
		return "", reqErr
	}

	translated, err := call.extract(respBody)
	if err != nil {
		recordProviderRequest(cfg.Kind, statusMalformed, duration, len(call.body), len(respBody))
		log.WithError(err).Error("Provider response had an unexpected shape")
		return "", err
	}

	recordProviderRequest(cfg.Kind, statusSuccess, duration, len(call.body), len(respBody))
	log.WithField("translated_size", len(translated)).Info("Translation completed successfully")
	return translated, nil
}

// Execute is Translate folded into a Result.
func (c *Client) Execute(ctx context.Context, req Request) Result {
	return Execute(ctx, c, req)
}

// redactedValue replaces credentials carried in provider URLs.
const redactedValue = "REDACTED"

// redactURLError masks the query of the URL that net/http embeds in
// transport errors, so API keys sent as query parameters never reach logs
// or callers.
func redactURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = redactEndpoint(urlErr.URL)
	}
	return err
}

// redactEndpoint returns endpoint with every query value and any user info
// replaced by a placeholder.
func redactEndpoint(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		if base, _, found := strings.Cut(endpoint, "?"); found {
			return base + "?" + redactedValue
		}
		return endpoint
	}
	if u.User != nil {
		u.User = url.User(redactedValue)
	}
	if u.RawQuery != "" {
		q := u.Query()
		for k := range q {
			q.Set(k, redactedValue)
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}
