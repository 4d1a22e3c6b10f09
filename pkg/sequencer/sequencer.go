package sequencer

import (
	"context"
	"slices"

	"github.com/Avi18971911/augur-span-reporter/pkg/reporter"
	"github.com/Avi18971911/augur-span-reporter/pkg/span_clock"
	"github.com/Avi18971911/augur-span-reporter/pkg/trace/model"
	"go.uber.org/zap"
)

// Outcome is what a run managed to report. On failure it holds the spans opened so far; those
// without an end time were left open at the collector.
type Outcome struct {
	TraceID string
	Spans   []model.Span
}

func (o Outcome) OpenSpans() []model.Span {
	var open []model.Span
	for _, span := range o.Spans {
		if !span.IsClosed() {
			open = append(open, span)
		}
	}
	return open
}

type Sequencer interface {
	Run(ctx context.Context, pipeline *Pipeline) (Outcome, error)
}

type SequencerImpl struct {
	reporter reporter.SpanReporter
	clock    span_clock.SpanClock
	logger   *zap.Logger
}

func NewSequencerImpl(
	reporter reporter.SpanReporter,
	clock span_clock.SpanClock,
	logger *zap.Logger,
) *SequencerImpl {
	return &SequencerImpl{
		reporter: reporter,
		clock:    clock,
		logger:   logger,
	}
}

// pipelineRun is the state owned by a single Run call.
type pipelineRun struct {
	steps     []Step
	spans     []model.Span
	stepIndex map[string]int
	traceID   string
}

func (pr *pipelineRun) outcome() Outcome {
	return Outcome{
		TraceID: pr.traceID,
		Spans:   slices.Clone(pr.spans),
	}
}

// Run executes the pipeline strictly in order. A step's span is only created once the collector has
// answered for its parent, and the first failure aborts the run without closing spans left open.
func (s *SequencerImpl) Run(ctx context.Context, pipeline *Pipeline) (Outcome, error) {
	run := &pipelineRun{
		steps:     pipeline.steps,
		stepIndex: make(map[string]int, len(pipeline.steps)),
	}
	unwind := pipeline.closeMode == CloseOnUnwind
	tc := model.EmptyTraceContext()
	var open []int

	for _, step := range pipeline.steps {
		parent := tc
		switch step.Parent.kind {
		case parentRoot:
			parent = model.EmptyTraceContext()
		case parentStep:
			parentIdx := run.stepIndex[step.Parent.step]
			if unwind {
				for len(open) > 0 && open[len(open)-1] != parentIdx {
					if err := s.closeSpan(ctx, run, open[len(open)-1]); err != nil {
						return run.outcome(), err
					}
					open = open[:len(open)-1]
				}
			}
			parent = tc.WithCurrentSpan(run.spans[parentIdx].SpanID)
		}

		idx, err := s.openSpan(ctx, run, step, parent)
		if err != nil {
			return run.outcome(), err
		}

		if err := s.execute(ctx, step); err != nil {
			s.logger.Error(
				"Step work failed, aborting pipeline",
				zap.String("step", step.Name),
				zap.String("trace_id", run.traceID),
				zap.Error(err),
			)
			return run.outcome(), &StepError{Step: step.Name, Operation: step.Operation, Phase: PhaseWork, Err: err}
		}

		tc = model.NewTraceContext(run.traceID, run.spans[idx].SpanID)
		if unwind {
			open = append(open, idx)
			continue
		}
		if err := s.closeSpan(ctx, run, idx); err != nil {
			return run.outcome(), err
		}
	}

	for len(open) > 0 {
		if err := s.closeSpan(ctx, run, open[len(open)-1]); err != nil {
			return run.outcome(), err
		}
		open = open[:len(open)-1]
	}

	s.logger.Info(
		"Pipeline completed",
		zap.String("trace_id", run.traceID),
		zap.Int("spans", len(run.spans)),
	)
	return run.outcome(), nil
}

func (s *SequencerImpl) openSpan(
	ctx context.Context,
	run *pipelineRun,
	step Step,
	parent model.TraceContext,
) (int, error) {
	startTime := s.clock.Now()
	spanID, traceID, err := s.reporter.StartSpan(
		ctx,
		parent,
		step.Service,
		step.Operation,
		step.Message,
		startTime,
	)
	if err != nil {
		s.logger.Error(
			"Failed to start span, aborting pipeline",
			zap.String("step", step.Name),
			zap.String("trace_id", parent.TraceID()),
			zap.String("parent_span_id", parent.CurrentSpanID()),
			zap.Error(err),
		)
		return 0, &StepError{Step: step.Name, Operation: step.Operation, Phase: PhaseStart, Err: err}
	}
	if parent.IsEmpty() {
		run.traceID = traceID
	}

	run.spans = append(run.spans, model.Span{
		SpanID:       spanID,
		TraceID:      run.traceID,
		ParentSpanID: parent.CurrentSpanID(),
		Service:      step.Service,
		Operation:    step.Operation,
		Message:      step.Message,
		StartTime:    startTime,
	})
	idx := len(run.spans) - 1
	run.stepIndex[step.Name] = idx
	s.logger.Debug(
		"Opened span",
		zap.String("step", step.Name),
		zap.String("trace_id", run.traceID),
		zap.String("span_id", spanID),
		zap.String("parent_span_id", parent.CurrentSpanID()),
	)
	return idx, nil
}

func (s *SequencerImpl) closeSpan(ctx context.Context, run *pipelineRun, idx int) error {
	span := &run.spans[idx]
	endTime := s.clock.Now()
	if err := s.reporter.EndSpan(ctx, span.SpanID, endTime); err != nil {
		s.logger.Error(
			"Failed to end span, aborting pipeline",
			zap.String("step", run.steps[idx].Name),
			zap.String("trace_id", run.traceID),
			zap.String("span_id", span.SpanID),
			zap.Error(err),
		)
		return &StepError{Step: run.steps[idx].Name, Operation: span.Operation, Phase: PhaseEnd, Err: err}
	}
	span.EndTime = &endTime
	s.logger.Debug(
		"Closed span",
		zap.String("step", run.steps[idx].Name),
		zap.String("span_id", span.SpanID),
		zap.Duration("duration", span.Duration()),
	)
	return nil
}

func (s *SequencerImpl) execute(ctx context.Context, step Step) error {
	if step.Work != nil {
		return step.Work(ctx)
	}
	return s.clock.Wait(ctx, step.Duration)
}
