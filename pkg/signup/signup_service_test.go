package signup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Avi18971911/augur-span-reporter/pkg/aggregator"
	"github.com/Avi18971911/augur-span-reporter/pkg/sequencer"
	"github.com/Avi18971911/augur-span-reporter/pkg/trace/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testConfig = Config{
	Service:                  "nodejs-app",
	CreateUserDuration:       500 * time.Millisecond,
	DatabaseInsertDuration:   500 * time.Millisecond,
	SendConfirmationDuration: 700 * time.Millisecond,
	CloseMode:                sequencer.CloseOnUnwind,
}

func TestBuildPipeline(t *testing.T) {
	t.Run("Lays out the signup steps in order with their durations", func(t *testing.T) {
		pipeline, err := BuildPipeline(testConfig, "aun", "aun@gmail.com")
		require.NoError(t, err)

		steps := pipeline.Steps()
		require.Len(t, steps, 3)
		assert.Equal(t, CreateUserStep, steps[0].Operation)
		assert.Equal(t, sequencer.Root(), steps[0].Parent)
		assert.Equal(t, 500*time.Millisecond, steps[0].Duration)
		assert.Equal(t, "Creating user aun", steps[0].Message)

		assert.Equal(t, DatabaseInsertStep, steps[1].Operation)
		assert.Equal(t, sequencer.ChildOfPrevious(), steps[1].Parent)
		assert.Equal(t, "Inserting user data for aun", steps[1].Message)

		assert.Equal(t, SendConfirmationStep, steps[2].Operation)
		assert.Equal(t, sequencer.ChildOfPrevious(), steps[2].Parent)
		assert.Equal(t, 700*time.Millisecond, steps[2].Duration)
		assert.Equal(t, "Sending confirmation email to aun@gmail.com", steps[2].Message)
		for _, step := range steps {
			assert.Equal(t, "nodejs-app", step.Service)
		}
	})

	t.Run("Rejects negative durations", func(t *testing.T) {
		cfg := testConfig
		cfg.DatabaseInsertDuration = -time.Second
		_, err := BuildPipeline(cfg, "aun", "aun@gmail.com")
		assert.ErrorIs(t, err, sequencer.ErrNegativeDuration)
	})
}

func TestSignupServiceImpl_CreateUser(t *testing.T) {
	t.Run("Returns the trace of a successful run", func(t *testing.T) {
		seq := &stubSequencer{outcome: sequencer.Outcome{
			TraceID: "trace-1",
			Spans:   []model.Span{{SpanID: "span-1", TraceID: "trace-1"}},
		}}
		ss := NewSignupServiceImpl(seq, aggregator.NewResultAggregatorImpl(zap.NewNop()), testConfig, zap.NewNop())

		result := ss.CreateUser(context.Background(), "aun", "aun@gmail.com")
		assert.True(t, result.Succeeded())
		assert.Equal(t, "trace-1", result.TraceID)
		require.NotNil(t, seq.pipeline)
		assert.Len(t, seq.pipeline.Steps(), 3)
	})

	t.Run("Returns a failed result when the run fails", func(t *testing.T) {
		seq := &stubSequencer{err: &sequencer.StepError{Step: "create-user", Phase: sequencer.PhaseStart, Err: errors.New("unreachable")}}
		ss := NewSignupServiceImpl(seq, aggregator.NewResultAggregatorImpl(zap.NewNop()), testConfig, zap.NewNop())

		result := ss.CreateUser(context.Background(), "aun", "aun@gmail.com")
		assert.Equal(t, aggregator.StatusFailed, result.Status)
		assert.Equal(t, "create-user", result.FailedStep)
	})

	t.Run("Does not run an invalid pipeline", func(t *testing.T) {
		seq := &stubSequencer{}
		cfg := testConfig
		cfg.CreateUserDuration = -time.Second
		ss := NewSignupServiceImpl(seq, aggregator.NewResultAggregatorImpl(zap.NewNop()), cfg, zap.NewNop())

		result := ss.CreateUser(context.Background(), "aun", "aun@gmail.com")
		assert.Equal(t, aggregator.StatusFailed, result.Status)
		assert.Nil(t, seq.pipeline)
	})
}

type stubSequencer struct {
	pipeline *sequencer.Pipeline
	outcome  sequencer.Outcome
	err      error
}

func (s *stubSequencer) Run(ctx context.Context, pipeline *sequencer.Pipeline) (sequencer.Outcome, error) {
	s.pipeline = pipeline
	return s.outcome, s.err
}
