// Package search turns one user query into a PDF link, a reference link and
// a completion answer, and records the exchange in the chat history.
package search

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"querydesk/internal/metrics"
	"querydesk/internal/providers"
	"querydesk/internal/storage"
)

const (
	CompletionFailedText = "There was an error generating the response. Please try again later."
	ProcessingFailedText = "An error occurred processing your request."
)

type Result struct {
	PDFEmbedURL     string `json:"pdf_embed_url"`
	EmbeddedWebsite string `json:"embedded_website"`
	AIResponse      string `json:"ai_response"`
}

type ChatRecorder interface {
	InsertChat(ctx context.Context, c storage.Chat) (int64, error)
}

type AssetDir interface {
	Lookup(query string) (string, bool)
}

type Config struct {
	Completer providers.Completer
	Chats     ChatRecorder
	Keywords  *KeywordTable
	PDFs      AssetDir
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
}

type Orchestrator struct {
	completer providers.Completer
	chats     ChatRecorder
	keywords  *KeywordTable
	pdfs      AssetDir
	logger    zerolog.Logger
	metrics   *metrics.Metrics
}

func NewOrchestrator(cfg Config) *Orchestrator {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	if cfg.Keywords == nil {
		cfg.Keywords = NewKeywordTable(nil)
	}
	return &Orchestrator{
		completer: cfg.Completer,
		chats:     cfg.Chats,
		keywords:  cfg.Keywords,
		pdfs:      cfg.PDFs,
		logger:    cfg.Logger,
		metrics:   m,
	}
}

// Process never fails. Completion errors become placeholder text; a failure
// to record the chat yields the generic error result with empty links.
func (o *Orchestrator) Process(ctx context.Context, userID int64, query string) Result {
	o.metrics.SearchesTotal.Inc()
	log := o.logger.With().Int64("user_id", userID).Logger()

	res, err := o.process(ctx, userID, query)
	if err != nil {
		o.metrics.SearchFailures.Inc()
		log.Error().Err(err).Msg("search query failed")
		return Result{AIResponse: ProcessingFailedText}
	}
	return res
}

func (o *Orchestrator) process(ctx context.Context, userID int64, query string) (Result, error) {
	var res Result

	if o.pdfs != nil {
		if name, ok := o.pdfs.Lookup(query); ok {
			res.PDFEmbedURL = PDFURL(name)
			o.metrics.PDFMatches.Inc()
		}
	}

	if link, ok := o.keywords.Lookup(query); ok {
		res.EmbeddedWebsite = link
		o.metrics.KeywordMatches.Inc()
	}

	if query != "" {
		res.AIResponse = o.complete(ctx, userID, query)
	}

	if o.chats == nil {
		return Result{}, fmt.Errorf("chat recorder is not configured")
	}
	if _, err := o.chats.InsertChat(ctx, storage.Chat{
		UserID:          userID,
		Query:           query,
		Response:        res.AIResponse,
		PDFPreview:      res.PDFEmbedURL != "",
		EmbeddedWebsite: res.EmbeddedWebsite,
	}); err != nil {
		return Result{}, fmt.Errorf("record chat: %w", err)
	}
	o.metrics.ChatsRecorded.Inc()

	return res, nil
}

func (o *Orchestrator) complete(ctx context.Context, userID int64, query string) string {
	if o.completer == nil {
		o.metrics.CompletionFailures.WithLabelValues("unconfigured").Inc()
		return CompletionFailedText
	}
	text, err := o.completer.Complete(ctx, query)
	if err == nil {
		return CleanResponse(text)
	}

	var statusErr *providers.StatusError
	if errors.As(err, &statusErr) {
		o.metrics.CompletionFailures.WithLabelValues("status").Inc()
		o.logger.Error().Int64("user_id", userID).Int("status", statusErr.StatusCode).Msg("completion api error")
		return fmt.Sprintf("Error: %d", statusErr.StatusCode)
	}
	o.metrics.CompletionFailures.WithLabelValues("transport").Inc()
	o.logger.Error().Err(err).Int64("user_id", userID).Msg("completion request failed")
	return CompletionFailedText
}
