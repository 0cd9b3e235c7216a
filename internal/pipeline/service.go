package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/franckalain/barcodenutrition/internal/models"
	"github.com/franckalain/barcodenutrition/internal/nutrition"
)

// Outcome classifies how a request was answered.
type Outcome string

const (
	OutcomeNoMedia        Outcome = "no_media"
	OutcomeDecodeFailure  Outcome = "decode_failure"
	OutcomeSkipped        Outcome = "skipped"
	OutcomeInvalidKeyword Outcome = "invalid_keyword"
	OutcomeIncomplete     Outcome = "incomplete"
	OutcomeUnavailable    Outcome = "unavailable"
	OutcomeAnswered       Outcome = "answered"
)

// Request is one inbound message: its attached image references, in
// attachment order, and its text body.
type Request struct {
	ID     string
	Images []string
	Body   string
}

// Response is the single plain-text reply to a request.
type Response struct {
	Text    string
	Outcome Outcome
	Command Command
}

// Service answers barcode messages with nutrition summaries.
type Service struct {
	resolver      *Resolver
	lookup        nutrition.Lookup
	lookupTimeout time.Duration
	footer        string
	logger        *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLookupTimeout bounds each nutrition lookup.
func WithLookupTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.lookupTimeout = d }
}

// WithFooter appends "\n\n"+footer to computed answers.
func WithFooter(footer string) ServiceOption {
	return func(s *Service) { s.footer = footer }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a service over the given resolver and lookup source.
func NewService(resolver *Resolver, lookup nutrition.Lookup, opts ...ServiceOption) *Service {
	s := &Service{
		resolver: resolver,
		lookup:   lookup,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reply answers req. Every failure is turned into a user-facing text; the
// returned Response always carries one.
func (s *Service) Reply(ctx context.Context, req Request) Response {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	keyword := strings.TrimSpace(req.Body)
	log := s.logger.With(zap.String("request_id", req.ID))
	log.Info("handling request", zap.Int("num_media", len(req.Images)), zap.String("keyword", keyword))

	if len(req.Images) == 0 {
		return Response{Text: NoMediaText, Outcome: OutcomeNoMedia}
	}

	codes, err := s.resolver.Resolve(ctx, req.Images)
	if errors.Is(err, ErrDecodeFailure) {
		log.Info("barcode not recognized", zap.Error(err))
		return Response{Text: DecodeFailureText, Outcome: OutcomeDecodeFailure}
	}
	if err != nil {
		log.Error("resolving barcodes failed", zap.Error(err))
		return Response{Text: UnavailableText, Outcome: OutcomeUnavailable}
	}

	items, skipped, err := ResolveItems(ctx, s.lookup, codes, s.lookupTimeout)
	if err != nil {
		log.Error("nutrition lookup failed", zap.Error(err))
		return Response{Text: UnavailableText, Outcome: OutcomeUnavailable}
	}
	if len(skipped) > 0 {
		log.Info("skipping request", zap.Any("skipped", skipped))
		return Response{Text: SkipReportText(skipped), Outcome: OutcomeSkipped}
	}

	cmd := SelectCommand(len(req.Images), keyword)
	log.Debug("selected command", zap.Stringer("command", cmd.Kind))

	text, err := Aggregate(cmd, items, codes)
	var missing *MissingFieldError
	switch {
	case errors.As(err, &missing):
		log.Warn("incomplete nutrition data", zap.Error(err))
		return Response{Text: IncompleteText(missing), Outcome: OutcomeIncomplete, Command: cmd}
	case err != nil:
		log.Error("aggregation failed", zap.Error(err))
		return Response{Text: UnavailableText, Outcome: OutcomeUnavailable, Command: cmd}
	case cmd.Kind == CommandInvalid:
		return Response{Text: text, Outcome: OutcomeInvalidKeyword, Command: cmd}
	}

	if s.footer != "" {
		text += "\n\n" + s.footer
	}
	return Response{Text: text, Outcome: OutcomeAnswered, Command: cmd}
}

// Lookup returns the nutrition facts for a single code, bounded by the
// configured lookup timeout.
func (s *Service) Lookup(ctx context.Context, code string) (*models.NutritionItem, error) {
	return lookupOne(ctx, s.lookup, code, s.lookupTimeout)
}
