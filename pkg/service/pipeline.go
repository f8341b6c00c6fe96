package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/pagetrans/pkg/content"
	"github.com/dasmlab/pagetrans/pkg/translate"
)

// RegionLocator picks the region of a document to translate.
type RegionLocator interface {
	Locate(doc *goquery.Document) (*content.Region, error)
}

// Stage marks a completed step of the pipeline.
type Stage int

const (
	StageLocated Stage = iota + 1
	StageTranslated
	StageReconciled
)

func (s Stage) String() string {
	switch s {
	case StageLocated:
		return "located"
	case StageTranslated:
		return "translated"
	case StageReconciled:
		return "reconciled"
	default:
		return "unknown"
	}
}

// Outcome describes one successful pipeline run.
type Outcome struct {
	ProviderID     string
	Kind           translate.ProviderKind
	RegionTag      string
	Mode           content.Mode
	SourceSize     int
	TranslatedSize int
	Duration       time.Duration
}

// PageTranslator runs locate, translate and reconcile against one parsed
// document. The in-progress indicator is shown for the whole run and is
// removed on every exit path.
type PageTranslator struct {
	Locator        RegionLocator
	Translator     translate.Translator
	Logger         *logrus.Logger
	IndicatorLabel string
}

// NewPageTranslator creates a pipeline with the default locator.
func NewPageTranslator(translator translate.Translator, logger *logrus.Logger) *PageTranslator {
	if logger == nil {
		logger = logrus.New()
	}
	return &PageTranslator{
		Locator:        content.NewLocator(logger),
		Translator:     translator,
		Logger:         logger,
		IndicatorLabel: content.DefaultIndicatorLabel,
	}
}

// TranslateDocument translates the main content region of doc in place.
func (p *PageTranslator) TranslateDocument(ctx context.Context, doc *goquery.Document, cfg translate.ProviderConfig) (*Outcome, error) {
	return p.TranslateDocumentWithProgress(ctx, doc, cfg, nil)
}

// TranslateDocumentWithProgress is TranslateDocument with a callback invoked
// after each completed stage. progress may be nil.
func (p *PageTranslator) TranslateDocumentWithProgress(ctx context.Context, doc *goquery.Document, cfg translate.ProviderConfig, progress func(Stage)) (outcome *Outcome, err error) {
	if p.Translator == nil {
		return nil, fmt.Errorf("translator not configured")
	}
	if progress == nil {
		progress = func(Stage) {}
	}

	startTime := time.Now()
	log := p.Logger.WithFields(logrus.Fields{
		"provider": cfg.DisplayName(),
		"kind":     cfg.Kind,
	})

	release := content.ShowIndicator(doc, p.IndicatorLabel)
	defer release()
	defer func() {
		recordPipelineRun(outcome, err, time.Since(startTime))
	}()

	region, err := p.Locator.Locate(doc)
	if err != nil {
		log.WithError(err).Warn("No translatable region found")
		return nil, err
	}
	source, err := region.OuterHTML()
	if err != nil {
		return nil, fmt.Errorf("render region: %w", err)
	}
	progress(StageLocated)

	log = log.WithFields(logrus.Fields{
		"region_tag":  region.Tag(),
		"source_size": len(source),
	})
	log.Debug("Located main content region")

	req, err := translate.NewRequest(cfg, source)
	if err != nil {
		log.WithError(err).Error("Invalid provider configuration")
		return nil, err
	}

	translated, err := p.Translator.Translate(ctx, req)
	if err != nil {
		log.WithError(err).Error("Region translation failed")
		return nil, err
	}
	progress(StageTranslated)

	mode, err := content.Reconcile(region, translated)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	progress(StageReconciled)

	outcome = &Outcome{
		ProviderID:     cfg.ID,
		Kind:           req.Provider().Kind,
		RegionTag:      region.Tag(),
		Mode:           mode,
		SourceSize:     len(source),
		TranslatedSize: len(translated),
		Duration:       time.Since(startTime),
	}

	log.WithFields(logrus.Fields{
		"mode":            mode.String(),
		"translated_size": len(translated),
		"duration_ms":     outcome.Duration.Milliseconds(),
	}).Info("Page region translated")

	return outcome, nil
}

// TranslateHTML parses markup, translates its main content region and
// renders the resulting document.
func (p *PageTranslator) TranslateHTML(ctx context.Context, markup string, cfg translate.ProviderConfig) (string, *Outcome, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", nil, fmt.Errorf("parse document: %w", err)
	}

	outcome, err := p.TranslateDocument(ctx, doc, cfg)
	if err != nil {
		return "", nil, err
	}

	rendered, err := goquery.OuterHtml(doc.Selection)
	if err != nil {
		return "", nil, fmt.Errorf("render document: %w", err)
	}
	return rendered, outcome, nil
}
