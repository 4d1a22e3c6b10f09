package handler

// SignupResponseDTO represents the answer to a successfully traced signup
// @swagger:model SignupResponseDTO
type SignupResponseDTO struct {
	// Fixed confirmation message
	Message string `json:"message" validate:"required"`
	// The trace the signup was reported under
	TraceID string `json:"trace_id" validate:"required"`
}
