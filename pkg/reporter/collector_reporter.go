package reporter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Avi18971911/augur-span-reporter/pkg/trace/model"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const (
	startTracePath = "/start-trace"
	addTracePath   = "/add-trace"
	stopTracePath  = "/stop-trace"
)

const (
	DefaultTimeout      = 5 * time.Second
	DefaultRetryWaitMin = 100 * time.Millisecond
	DefaultRetryWaitMax = 2 * time.Second
)

type CollectorReporterConfig struct {
	BaseURL string
	// Timeout bounds a whole reporting call, retries included.
	Timeout time.Duration
	// MaxRetries is zero by default: a failed call is reported straight away. When set, only
	// transient failures are retried.
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

type CollectorReporterImpl struct {
	client  *resty.Client
	timeout time.Duration
	logger  *zap.Logger
}

func NewCollectorReporterImpl(cfg CollectorReporterConfig, logger *zap.Logger) *CollectorReporterImpl {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	waitMin := cfg.RetryWaitMin
	if waitMin <= 0 {
		waitMin = DefaultRetryWaitMin
	}
	waitMax := cfg.RetryWaitMax
	if waitMax < waitMin {
		waitMax = DefaultRetryWaitMax
	}

	client := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(max(cfg.MaxRetries, 0)).
		SetRetryWaitTime(waitMin).
		SetRetryMaxWaitTime(waitMax).
		AddRetryCondition(isTransient)

	return &CollectorReporterImpl{
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

func (cr *CollectorReporterImpl) StartSpan(
	ctx context.Context,
	parent model.TraceContext,
	service string,
	operation string,
	message string,
	startTime time.Time,
) (string, string, error) {
	if parent.IsEmpty() {
		return cr.startTrace(ctx, service, operation, message, startTime)
	}
	spanID, err := cr.addTrace(ctx, parent, service, operation, message, startTime)
	if err != nil {
		return "", "", err
	}
	return spanID, parent.TraceID(), nil
}

func (cr *CollectorReporterImpl) startTrace(
	ctx context.Context,
	service string,
	operation string,
	message string,
	startTime time.Time,
) (string, string, error) {
	req := StartTraceRequestDTO{
		Service:   service,
		Operation: operation,
		Message:   message,
		StartTime: startTime,
	}
	var res SpanCreatedResponseDTO
	if err := cr.post(ctx, StartTraceCall, startTracePath, req, &res); err != nil {
		return "", "", err
	}
	if res.TraceID == "" || res.SpanID == "" {
		return "", "", &ReportingError{
			Call:       StartTraceCall,
			StatusCode: http.StatusOK,
			Message:    "response missing trace_id or span_id",
			Err:        ErrMissingIdentifier,
		}
	}
	cr.logger.Debug(
		"Started trace",
		zap.String("trace_id", res.TraceID),
		zap.String("span_id", res.SpanID),
		zap.String("operation", operation),
	)
	return res.SpanID, res.TraceID, nil
}

func (cr *CollectorReporterImpl) addTrace(
	ctx context.Context,
	parent model.TraceContext,
	service string,
	operation string,
	message string,
	startTime time.Time,
) (string, error) {
	req := AddTraceRequestDTO{
		TraceID:      parent.TraceID(),
		ParentSpanID: parent.CurrentSpanID(),
		Service:      service,
		Operation:    operation,
		Message:      message,
		StartTime:    startTime,
	}
	var res SpanCreatedResponseDTO
	if err := cr.post(ctx, AddTraceCall, addTracePath, req, &res); err != nil {
		return "", err
	}
	if res.SpanID == "" {
		return "", &ReportingError{
			Call:       AddTraceCall,
			StatusCode: http.StatusOK,
			Message:    "response missing span_id",
			Err:        ErrMissingIdentifier,
		}
	}
	if res.TraceID != "" && res.TraceID != parent.TraceID() {
		return "", &ReportingError{
			Call:       AddTraceCall,
			StatusCode: http.StatusOK,
			Message:    "expected trace " + parent.TraceID() + ", got " + res.TraceID,
			Err:        ErrTraceMismatch,
		}
	}
	cr.logger.Debug(
		"Added span to trace",
		zap.String("trace_id", parent.TraceID()),
		zap.String("parent_span_id", parent.CurrentSpanID()),
		zap.String("span_id", res.SpanID),
		zap.String("operation", operation),
	)
	return res.SpanID, nil
}

// EndSpan closes spanID. Closing an already closed span is left to the collector to judge.
func (cr *CollectorReporterImpl) EndSpan(ctx context.Context, spanID string, endTime time.Time) error {
	if spanID == "" {
		return &ReportingError{Call: StopTraceCall, Message: "no span id given", Err: ErrEmptySpanID}
	}
	req := StopTraceRequestDTO{
		SpanID:  spanID,
		EndTime: endTime,
	}
	var res StopTraceResponseDTO
	if err := cr.post(ctx, StopTraceCall, stopTracePath, req, &res); err != nil {
		return err
	}
	cr.logger.Debug("Stopped span", zap.String("span_id", spanID), zap.String("status", res.Status))
	return nil
}

func (cr *CollectorReporterImpl) post(
	ctx context.Context,
	call CollectorCall,
	path string,
	body interface{},
	out interface{},
) error {
	callCtx, cancel := context.WithTimeout(ctx, cr.timeout)
	defer cancel()

	resp, err := cr.client.R().
		SetContext(callCtx).
		SetBody(body).
		Post(path)
	if err != nil {
		cr.logger.Error("Collector call failed", zap.String("call", string(call)), zap.Error(err))
		return &ReportingError{
			Call:      call,
			Transient: !errors.Is(err, context.Canceled),
			Err:       err,
		}
	}
	if resp.IsError() || resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		reportingErr := &ReportingError{
			Call:       call,
			StatusCode: resp.StatusCode(),
			Message:    collectorErrorMessage(resp.Body()),
			Transient:  isTransient(resp, nil),
		}
		cr.logger.Error(
			"Collector rejected call",
			zap.String("call", string(call)),
			zap.Int("status", resp.StatusCode()),
			zap.String("message", reportingErr.Message),
		)
		return reportingErr
	}
	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &ReportingError{
			Call:       call,
			StatusCode: resp.StatusCode(),
			Message:    "malformed response body",
			Err:        err,
		}
	}
	return nil
}

func collectorErrorMessage(body []byte) string {
	var errDTO CollectorErrorDTO
	if err := json.Unmarshal(body, &errDTO); err == nil && errDTO.Error != "" {
		return errDTO.Error
	}
	return strings.TrimSpace(string(body))
}

// isTransient classifies a failed attempt the way go-retryablehttp does: transport errors, 429 and
// 5xx other than 501 are worth another try, everything else is permanent.
func isTransient(r *resty.Response, err error) bool {
	ctx := context.Background()
	var raw *http.Response
	if r != nil {
		raw = r.RawResponse
		if r.Request != nil {
			ctx = r.Request.Context()
		}
	}
	if raw == nil && err == nil {
		return false
	}
	retry, _ := retryablehttp.DefaultRetryPolicy(ctx, raw, err)
	return retry
}
