package domain

import (
	"errors"
	"fmt"

	"lexmatch_backend/platform/apperr"

	"github.com/google/uuid"
)

var (
	// ErrInvalidTransition matches every *TransitionError via errors.Is.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")
)

// TransitionError reports an action attempted from a status that does not
// allow it. The record is left unchanged.
type TransitionError struct {
	CaseID uuid.UUID
	Action Action
	From   Status
}

func (e *TransitionError) Error() string {
	from := string(e.From)
	if from == "" {
		from = "none"
	}
	return fmt.Sprintf("case %s: cannot %s from status %s", e.CaseID, e.Action, from)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// AppError maps the error to a 409 response.
func (e *TransitionError) AppError() *apperr.Error {
	return apperr.Conflict(e.Error()).WithDetails(map[string]string{
		"caseId": e.CaseID.String(),
		"action": string(e.Action),
		"status": string(e.From),
	})
}

// ValidationError reports input the state machine refused.
type ValidationError struct {
	CaseID  uuid.UUID
	Action  Action
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("case %s: %s: %s %s", e.CaseID, e.Action, e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// AppError maps the error to a 400 response.
func (e *ValidationError) AppError() *apperr.Error {
	return apperr.Validation(e.Field + " " + e.Message).WithDetails(map[string]string{
		"caseId": e.CaseID.String(),
		"action": string(e.Action),
		"field":  e.Field,
	})
}

var (
	_ apperr.Converter = (*TransitionError)(nil)
	_ apperr.Converter = (*ValidationError)(nil)
)
