package signup

import (
	"context"
	"fmt"
	"time"

	"github.com/Avi18971911/augur-span-reporter/pkg/aggregator"
	"github.com/Avi18971911/augur-span-reporter/pkg/sequencer"
	"go.uber.org/zap"
)

const (
	CreateUserStep       = "create-user"
	DatabaseInsertStep   = "database-insert"
	SendConfirmationStep = "send-confirmation"
)

type Config struct {
	Service                  string
	CreateUserDuration       time.Duration
	DatabaseInsertDuration   time.Duration
	SendConfirmationDuration time.Duration
	CloseMode                sequencer.CloseMode
}

type SignupService interface {
	CreateUser(ctx context.Context, username string, email string) aggregator.Result
}

type SignupServiceImpl struct {
	sequencer  sequencer.Sequencer
	aggregator aggregator.ResultAggregator
	cfg        Config
	logger     *zap.Logger
}

func NewSignupServiceImpl(
	seq sequencer.Sequencer,
	agg aggregator.ResultAggregator,
	cfg Config,
	logger *zap.Logger,
) *SignupServiceImpl {
	return &SignupServiceImpl{
		sequencer:  seq,
		aggregator: agg,
		cfg:        cfg,
		logger:     logger,
	}
}

// CreateUser traces the signup flow for one user. Every call gets its own pipeline and trace.
func (ss *SignupServiceImpl) CreateUser(ctx context.Context, username string, email string) aggregator.Result {
	pipeline, err := BuildPipeline(ss.cfg, username, email)
	if err != nil {
		return ss.aggregator.Aggregate(sequencer.Outcome{}, err)
	}
	ss.logger.Info("Start tracing signup", zap.String("username", username))
	outcome, err := ss.sequencer.Run(ctx, pipeline)
	return ss.aggregator.Aggregate(outcome, err)
}

// BuildPipeline lays out create-user, then database-insert beneath it, then send-confirmation
// beneath the insert.
func BuildPipeline(cfg Config, username string, email string) (*sequencer.Pipeline, error) {
	steps := []sequencer.Step{
		{
			Name:      CreateUserStep,
			Service:   cfg.Service,
			Operation: CreateUserStep,
			Message:   fmt.Sprintf("Creating user %s", username),
			Duration:  cfg.CreateUserDuration,
			Parent:    sequencer.Root(),
		},
		{
			Name:      DatabaseInsertStep,
			Service:   cfg.Service,
			Operation: DatabaseInsertStep,
			Message:   fmt.Sprintf("Inserting user data for %s", username),
			Duration:  cfg.DatabaseInsertDuration,
			Parent:    sequencer.ChildOfPrevious(),
		},
		{
			Name:      SendConfirmationStep,
			Service:   cfg.Service,
			Operation: SendConfirmationStep,
			Message:   fmt.Sprintf("Sending confirmation email to %s", email),
			Duration:  cfg.SendConfirmationDuration,
			Parent:    sequencer.ChildOfPrevious(),
		},
	}
	return sequencer.NewPipeline(steps, cfg.CloseMode)
}
