// Package analysis runs the pipeline for one (project, user): input checks,
// guide extraction, speaker detection, prompt composition, model call,
// validation and persistence.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alnah/guidematrix/internal/apierr"
	"github.com/alnah/guidematrix/internal/guide"
	"github.com/alnah/guidematrix/internal/lang"
	"github.com/alnah/guidematrix/internal/llm"
	"github.com/alnah/guidematrix/internal/lock"
	"github.com/alnah/guidematrix/internal/project"
	"github.com/alnah/guidematrix/internal/prompt"
	"github.com/alnah/guidematrix/internal/schema"
	"github.com/alnah/guidematrix/internal/speaker"
	"github.com/alnah/guidematrix/internal/store"
	"github.com/alnah/guidematrix/internal/validate"
)

// DefaultMaxRetries is the number of retries of retryable transport errors.
const DefaultMaxRetries = 2

// Request is one analysis to run.
type Request struct {
	Key       store.Key
	Kind      schema.Kind
	Config    project.Config
	Documents []project.Document
}

// Prepared is everything derived from the inputs before the model call.
type Prepared struct {
	Kind      schema.Kind
	Documents []project.Document
	Guide     guide.Structure
	Hints     speaker.Hints
	Language  lang.Language
	Prompt    string
}

// Outcome is a finished run. Record is zero when nothing was persisted.
type Outcome struct {
	RunID    string
	Prepared Prepared
	Result   validate.Result
	Record   store.Record
}

// Service runs analyses against one invoker and store.
type Service struct {
	invoker llm.Invoker
	store   store.Store
	locker  lock.Locker
	logger  *zap.Logger
	metrics *Metrics
	retry   apierr.RetryConfig
	strict  bool
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLocker replaces the default in-process locker.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records run metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRetry sets the retry policy for model calls.
func WithRetry(cfg apierr.RetryConfig) Option {
	return func(s *Service) {
		s.retry = cfg
	}
}

// WithStrictQuality refuses to persist results that carry quality defects.
func WithStrictQuality() Option {
	return func(s *Service) {
		s.strict = true
	}
}

// NewService wires a service. Invoker and store are required.
func NewService(inv llm.Invoker, st store.Store, opts ...Option) *Service {
	s := &Service{
		invoker: inv,
		store:   st,
		locker:  lock.NewKeyed(),
		logger:  zap.NewNop(),
		retry: apierr.RetryConfig{
			MaxRetries: DefaultMaxRetries,
			BaseDelay:  2 * time.Second,
			MaxDelay:   30 * time.Second,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOption configures one run.
type RunOption func(*runOptions)

type runOptions struct {
	onEvent EventFunc
}

// WithEvents receives the run's phase events.
func WithEvents(fn EventFunc) RunOption {
	return func(o *runOptions) {
		o.onEvent = fn
	}
}

// Run executes one analysis. In strict mode a result with defects is
// returned alongside ErrQualityRejected and not persisted.
func (s *Service) Run(ctx context.Context, req Request, opts ...RunOption) (Outcome, error) {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}

	out := Outcome{RunID: uuid.NewString()}
	log := s.logger.With(zap.String("run_id", out.RunID), zap.String("key", req.Key.String()))
	emit := func(p Phase, detail string) {
		log.Debug("phase", zap.String("phase", string(p)), zap.String("detail", detail))
		if ro.onEvent != nil {
			ro.onEvent(Event{RunID: out.RunID, Phase: p, Detail: detail, At: s.now()})
		}
	}

	if err := req.Key.Validate(); err != nil {
		s.metrics.observeFailure("input")
		return out, err
	}
	if err := CheckInput(req.Config, req.Documents); err != nil {
		s.metrics.observeFailure("input")
		return out, err
	}
	emit(PhaseInputChecked, fmt.Sprintf("%d documents", len(req.Documents)))

	release, err := s.locker.TryAcquire(ctx, req.Key.String())
	if errors.Is(err, lock.ErrHeld) {
		s.metrics.observeFailure("locked")
		return out, fmt.Errorf("%s: %w", req.Key, ErrRunInProgress)
	}
	if err != nil {
		s.metrics.observeFailure("lock")
		return out, fmt.Errorf("acquire run lock: %w", err)
	}
	defer release()

	p, err := prepare(req, emit)
	if err != nil {
		s.metrics.observeFailure("input")
		return out, err
	}
	out.Prepared = p
	log.Info("run started",
		zap.String("kind", p.Kind.String()),
		zap.Int("documents", len(p.Documents)),
		zap.String("guide_source", string(p.Guide.Source)),
		zap.Int("prompt_chars", len(p.Prompt)))

	emit(PhaseInvokingModel, "")
	raw, err := s.invoke(ctx, p.Prompt, log)
	if err != nil {
		s.metrics.observeFailure(failureReason(err))
		log.Warn("model call failed", zap.Error(err))
		return out, fmt.Errorf("invoke model: %w", err)
	}

	emit(PhaseValidating, fmt.Sprintf("%d chars", len(raw)))
	vopts := []validate.Option{validate.WithTranscripts(p.Documents)}
	if p.Guide.Source == guide.SourceJSON {
		vopts = append(vopts, validate.WithGuide(p.Guide))
	}
	res := validate.Validate(raw, p.Kind, vopts...)
	out.Result = res
	s.logResult(log, res)

	if s.strict && len(res.Defects) > 0 {
		s.metrics.observeFailure("quality")
		return out, fmt.Errorf("%w: %d defects", ErrQualityRejected, len(res.Defects))
	}

	data, err := res.JSON()
	if err != nil {
		return out, fmt.Errorf("encode result: %w", err)
	}
	rec, err := s.store.Upsert(ctx, req.Key, store.Entry{
		Kind:   p.Kind.String(),
		Status: string(res.Status),
		RunID:  out.RunID,
		Data:   data,
	})
	if err != nil {
		s.metrics.observeFailure("store")
		return out, fmt.Errorf("persist result: %w", err)
	}
	out.Record = rec
	emit(PhasePersisted, fmt.Sprintf("version %d", rec.Version))

	s.metrics.observeRun(p.Kind.String(), string(res.Status))
	log.Info("run finished", zap.String("status", string(res.Status)), zap.Int64("version", rec.Version))
	return out, nil
}

// Get returns the stored analysis for key.
func (s *Service) Get(ctx context.Context, key store.Key) (store.Record, error) {
	return s.store.Get(ctx, key)
}

func (s *Service) invoke(ctx context.Context, text string, log *zap.Logger) (string, error) {
	cfg := s.retry
	cfg.OnRetry = func(attempt int, err error) {
		log.Warn("retrying model call", zap.Int("attempt", attempt), zap.Error(err))
	}

	start := s.now()
	defer func() { s.metrics.observeModel(s.now().Sub(start)) }()

	return apierr.RetryWithBackoff(ctx, cfg, func() (string, error) {
		return s.invoker.Invoke(ctx, llm.Request{System: prompt.SystemMessage, Prompt: text})
	}, apierr.IsRetryable)
}

func (s *Service) logResult(log *zap.Logger, res validate.Result) {
	path := make([]string, len(res.Path))
	for i, st := range res.Path {
		path[i] = string(st)
	}
	fields := []zap.Field{
		zap.String("status", string(res.Status)),
		zap.Strings("path", path),
		zap.Int("repairs", len(res.Repairs)),
		zap.Int("defects", len(res.Defects)),
	}
	if res.Matrix != nil {
		fields = append(fields, zap.Int("rows", len(res.Matrix.Rows)), zap.Int("cells", res.Matrix.CellCount()))
	}
	log.Info("validated", fields...)

	for _, r := range res.Repairs {
		log.Debug("repair", zap.String("repair", r))
	}
	for _, d := range res.Defects {
		s.metrics.observeDefect(string(d.Code))
		log.Warn("quality defect", zap.String("defect", d.String()))
	}
}

func failureReason(err error) string {
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if k := apierr.KindOf(err); k != apierr.KindNone {
		return string(k)
	}
	return "transport"
}
