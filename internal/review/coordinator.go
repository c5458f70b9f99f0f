package review

import (
	"context"
	"log"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammad-safakhou/litreview/config"
	"github.com/mohammad-safakhou/litreview/internal/telemetry"
	"github.com/mohammad-safakhou/litreview/provider"
	"github.com/mohammad-safakhou/litreview/repository"
	"github.com/mohammad-safakhou/litreview/tools/papersearch"
)

// Coordinator is the single entrypoint of the orchestration core: topic
// in, FinalReport out. Every invocation gets its own RunContext with a
// fresh backend client, so concurrent invocations share nothing mutable.
type Coordinator struct {
	cfg       *config.Config
	logger    *log.Logger
	metrics   *telemetry.Metrics
	tracer    trace.Tracer
	searcher  papersearch.Searcher
	archive   repository.RunArchive
	extractor *Extractor
	newClient func() (provider.Client, error)
	semaphore chan struct{}
}

// NewCoordinator validates configuration up front; faults here are
// ConfigurationErrors and no backend call is ever attempted.
func NewCoordinator(cfg *config.Config, searcher papersearch.Searcher, archive repository.RunArchive,
	metrics *telemetry.Metrics, tracer trace.Tracer, logger *log.Logger) (*Coordinator, error) {

	if cfg == nil {
		return nil, &ConfigurationError{Reason: "nil config"}
	}
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		return nil, &ConfigurationError{Reason: "llm api key not set"}
	}
	if searcher == nil {
		return nil, &ConfigurationError{Reason: "no search capability configured"}
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[COORDINATOR] ", log.LstdFlags)
	}
	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}
	if tracer == nil {
		tracer = otel.Tracer("litreview")
	}

	llmCfg := cfg.LLM
	return &Coordinator{
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
		searcher:  searcher,
		archive:   archive,
		extractor: NewExtractor(StageEvaluate, cfg.Pipeline.MinReportChars, nil),
		newClient: func() (provider.Client, error) { return provider.New(llmCfg) },
		semaphore: make(chan struct{}, cfg.Pipeline.MaxConcurrentRuns),
	}, nil
}

// RunReview executes the full pipeline for topic and extracts the final
// report from the run's event log. Once the pipeline has started, the
// caller gets either a well-formed FinalReport or a PipelineError.
func (c *Coordinator) RunReview(ctx context.Context, topic string) (FinalReport, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return FinalReport{}, &ConfigurationError{Reason: "empty topic"}
	}

	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return FinalReport{}, ctx.Err()
	}

	ctx, span := c.tracer.Start(ctx, "review.run",
		trace.WithAttributes(attribute.String("review.topic", topic)))
	defer span.End()

	started := time.Now()
	client, err := c.newClient()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return FinalReport{}, &ConfigurationError{Reason: err.Error()}
	}

	rc := NewRunContext(ctx, client, c.logger)
	defer rc.Close()
	span.SetAttributes(attribute.String("review.run_id", rc.ID()))
	c.logger.Printf("run %s started: %q", rc.ID(), topic)

	stages := BuildStages(c.searcher, c.cfg.Search.MaxResults, c.cfg.Pipeline, nil)
	loop := NewRefinementLoop(stages.Synthesize, stages.Evaluate,
		c.cfg.Pipeline.MaxIterations, c.cfg.Pipeline.AcceptanceThreshold, nil)
	pipeline := NewPipeline(c.logger, stages.Search, stages.Select, stages.Extract, loop)

	_, err = pipeline.Run(rc.Context(), rc, TextPayload(topic))
	c.metrics.RecordRun(time.Since(started), err)
	for _, ev := range rc.Events() {
		c.metrics.RecordStage(ev.Stage, 0, len(ev.Text), nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Printf("run %s failed: %v", rc.ID(), err)
		return FinalReport{}, err
	}

	report := c.extractor.Extract(rc.Events())
	c.archiveRun(ctx, rc, topic, report)
	c.logger.Printf("run %s finished in %s (incomplete=%v, warnings=%d)",
		rc.ID(), time.Since(started).Round(time.Millisecond), report.Incomplete, len(report.Warnings))
	return report, nil
}

// archiveRun stores the finished run best-effort: failures are logged,
// never surfaced to the caller.
func (c *Coordinator) archiveRun(ctx context.Context, rc *RunContext, topic string, report FinalReport) {
	if c.archive == nil {
		return
	}
	events := rc.Events()
	stored := make([]repository.StoredEvent, 0, len(events))
	for _, ev := range events {
		stored = append(stored, repository.StoredEvent{Stage: ev.Stage, Text: ev.Text, Timestamp: ev.Timestamp})
	}
	run := repository.RunRecord{
		ID:         rc.ID(),
		Topic:      topic,
		Report:     report.Text,
		Warnings:   report.Warnings,
		Incomplete: report.Incomplete,
		Events:     stored,
		CreatedAt:  rc.CreatedAt(),
	}
	// Detached from the run's cancellation so a finished run still archives.
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := c.archive.SaveRun(actx, run); err != nil {
		c.logger.Printf("run %s: archive failed: %v", rc.ID(), err)
	}
}
