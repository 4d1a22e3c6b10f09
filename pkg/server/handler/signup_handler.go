package handler

import (
	"encoding/json"
	"net/http"

	"github.com/Avi18971911/augur-span-reporter/internal/metrics"
	"github.com/Avi18971911/augur-span-reporter/pkg/signup"
	"go.uber.org/zap"
)

const (
	defaultUsername = "aun"
	defaultEmail    = "aun@gmail.com"

	signupSucceededMessage = "User created successfully!"
	signupFailedMessage    = "Failed to send trace"
)

// TestTraceHandler creates a handler that runs and reports the traced signup flow.
// @Summary Trace a simulated user signup
// @Tags tracing
// @Produce json
// @Param username query string false "The username to sign up"
// @Param email query string false "The email to confirm"
// @Success 200 {object} SignupResponseDTO "The signup was traced"
// @Failure 500 {object} ErrorMessage "The trace could not be reported"
// @Router /test-trace [get]
func TestTraceHandler(
	s signup.SignupService,
	m *metrics.Metrics,
	logger *zap.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.Info(
			"Test trace request received",
			zap.String("URL Path", r.URL.Path),
			zap.String("Method", r.Method),
		)
		username := r.URL.Query().Get("username")
		if username == "" {
			username = defaultUsername
		}
		email := r.URL.Query().Get("email")
		if email == "" {
			email = defaultEmail
		}

		result := s.CreateUser(r.Context(), username, email)
		m.PipelineRuns.WithLabelValues(string(result.Status)).Inc()
		if !result.Succeeded() {
			logger.Error(
				"Error encountered when sending trace",
				zap.String("failed_step", result.FailedStep),
				zap.String("reason", result.Reason),
			)
			HttpError(w, signupFailedMessage, http.StatusInternalServerError, logger)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(SignupResponseDTO{
			Message: signupSucceededMessage,
			TraceID: result.TraceID,
		})
		if err != nil {
			logger.Error("Error encountered when encoding response", zap.Error(err))
			HttpError(w, "Internal server error", http.StatusInternalServerError, logger)
			return
		}
		logger.Info("Test trace request successful", zap.String("trace_id", result.TraceID))
	}
}
