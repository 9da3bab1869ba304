package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		validation   *shared.ValidationError
		transition   *shared.InvalidTransitionError
		stock        *shared.InsufficientStockError
		referential  *shared.ReferentialIntegrityError
		unbalanced   *shared.UnbalancedEntryError
		fieldsErrors validator.ValidationErrors
	)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &validation):
		JSON(w, http.StatusUnprocessableEntity, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusUnprocessableEntity,
			Detail: validation.Message,
			Field:  validation.Field,
		})
	case errors.As(err, &fieldsErrors):
		field := ""
		if len(fieldsErrors) > 0 {
			field = fieldsErrors[0].Field()
		}
		JSON(w, http.StatusUnprocessableEntity, ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusUnprocessableEntity,
			Detail: err.Error(),
			Field:  field,
		})
	case errors.As(err, &transition):
		Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, shared.ErrAlreadyPosted):
		Problem(w, http.StatusConflict, "Already Posted", err.Error())
	case errors.As(err, &stock):
		Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.As(err, &referential):
		Problem(w, http.StatusUnprocessableEntity, "Referential Integrity", err.Error())
	case errors.As(err, &unbalanced):
		// Posting construction bug; the transaction has already rolled back.
		internalError(w, logger, "unbalanced journal entry", err)
	default:
		internalError(w, logger, "internal error", err)
	}
}

// internalError hides the cause from the caller but tags the response
// and the log line with a shared incident id.
func internalError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	incident := uuid.NewString()
	if logger != nil {
		logger.Error(msg, slog.Any("error", err), slog.String("incident", incident))
	}
	JSON(w, http.StatusInternalServerError, ProblemDetail{
		Title:    "Internal Error",
		Status:   http.StatusInternalServerError,
		Instance: "urn:uuid:" + incident,
	})
}
