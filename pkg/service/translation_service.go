package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dasmlab/pagetrans/pkg/translate"
)

// ProviderRegistry resolves configured providers by id.
type ProviderRegistry interface {
	Lookup(id string) (translate.ProviderConfig, bool)
}

// TranslateRequest asks for one markup fragment to be translated. Either
// Provider or ProviderID must be set; an inline Provider wins.
type TranslateRequest struct {
	Provider   *translate.ProviderConfig `json:"provider,omitempty"`
	ProviderID string                    `json:"provider_id,omitempty"`
	Markup     string                    `json:"markup"`
}

// TranslateResponse carries either translated text or an error, never both.
type TranslateResponse struct {
	Success        bool      `json:"success"`
	TranslatedText string    `json:"translated_text,omitempty"`
	Error          string    `json:"error,omitempty"`
	ErrorKind      ErrorKind `json:"error_kind,omitempty"`
}

// TranslatePageRequest asks for the main content of a whole HTML page to be
// translated in place.
type TranslatePageRequest struct {
	Provider   *translate.ProviderConfig `json:"provider,omitempty"`
	ProviderID string                    `json:"provider_id,omitempty"`
	HTML       string                    `json:"html"`
}

// TranslatePageResponse carries the rendered page on success.
type TranslatePageResponse struct {
	Success         bool      `json:"success"`
	HTML            string    `json:"html,omitempty"`
	Mode            string    `json:"mode,omitempty"`
	RegionTag       string    `json:"region_tag,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	Error           string    `json:"error,omitempty"`
	ErrorKind       ErrorKind `json:"error_kind,omitempty"`
}

// TranslationService implements the PageTranslation gRPC service. The HTTP
// API shares it so both transports behave the same.
type TranslationService struct {
	Pipeline  *PageTranslator
	Providers ProviderRegistry
	Logger    *logrus.Logger
}

// NewTranslationService creates a new TranslationService instance.
func NewTranslationService(pipeline *PageTranslator, providers ProviderRegistry, logger *logrus.Logger) *TranslationService {
	if logger == nil {
		logger = logrus.New()
	}
	return &TranslationService{
		Pipeline:  pipeline,
		Providers: providers,
		Logger:    logger,
	}
}

// ResolveProvider returns the inline provider when set, otherwise the
// registry entry for id.
func (s *TranslationService) ResolveProvider(inline *translate.ProviderConfig, id string) (translate.ProviderConfig, error) {
	if inline != nil {
		return *inline, nil
	}
	if id == "" {
		return translate.ProviderConfig{}, ErrProviderRequired
	}
	if s.Providers == nil {
		return translate.ProviderConfig{}, fmt.Errorf("%w %q: no provider registry configured", ErrUnknownProvider, id)
	}
	cfg, ok := s.Providers.Lookup(id)
	if !ok {
		return translate.ProviderConfig{}, fmt.Errorf("%w %q", ErrUnknownProvider, id)
	}
	return cfg, nil
}

// Translate translates one markup fragment. Malformed requests fail with
// InvalidArgument; translation failures are reported in the response.
func (s *TranslationService) Translate(ctx context.Context, req *TranslateRequest) (*TranslateResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.Markup == "" {
		s.Logger.Error("Translate: markup is required")
		return nil, status.Error(codes.InvalidArgument, "markup is required")
	}
	cfg, err := s.ResolveProvider(req.Provider, req.ProviderID)
	if err != nil {
		s.Logger.WithError(err).Error("Translate: provider could not be resolved")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	log := s.Logger.WithFields(logrus.Fields{
		"provider":    cfg.DisplayName(),
		"markup_size": len(req.Markup),
	})
	log.Info("Translate request received")

	tReq, err := translate.NewRequest(cfg, req.Markup)
	if err != nil {
		return failedTranslation(err), nil
	}
	result := translate.Execute(ctx, s.Pipeline.Translator, tReq)
	markup, ok := result.Markup()
	if !ok {
		log.WithError(result.Err()).Warn("Translation failed")
		return failedTranslation(result.Err()), nil
	}
	return &TranslateResponse{Success: true, TranslatedText: markup}, nil
}

// TranslatePage translates the main content region of a whole page.
func (s *TranslationService) TranslatePage(ctx context.Context, req *TranslatePageRequest) (*TranslatePageResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.HTML == "" {
		s.Logger.Error("TranslatePage: html is required")
		return nil, status.Error(codes.InvalidArgument, "html is required")
	}
	cfg, err := s.ResolveProvider(req.Provider, req.ProviderID)
	if err != nil {
		s.Logger.WithError(err).Error("TranslatePage: provider could not be resolved")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	startTime := time.Now()
	s.Logger.WithFields(logrus.Fields{
		"provider":  cfg.DisplayName(),
		"html_size": len(req.HTML),
	}).Info("TranslatePage request received")

	rendered, outcome, err := s.Pipeline.TranslateHTML(ctx, req.HTML, cfg)
	if err != nil {
		return &TranslatePageResponse{
			Success:   false,
			Error:     err.Error(),
			ErrorKind: ClassifyError(err),
		}, nil
	}

	return &TranslatePageResponse{
		Success:         true,
		HTML:            rendered,
		Mode:            outcome.Mode.String(),
		RegionTag:       outcome.RegionTag,
		DurationSeconds: time.Since(startTime).Seconds(),
	}, nil
}

func failedTranslation(err error) *TranslateResponse {
	return &TranslateResponse{
		Success:   false,
		Error:     err.Error(),
		ErrorKind: ClassifyError(err),
	}
}
