// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tripplanner/internal/modules/session"
	"tripplanner/internal/modules/trip"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// sessionStatus maps domain errors to HTTP statuses.
func sessionStatus(err error) int {
	switch {
	case trip.IsValidation(err), errors.Is(err, session.ErrEmptyQuestion):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrNoPDF):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNotReady), errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrStale):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeSessionError(c *gin.Context, err error) {
	status := sessionStatus(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		writeError(c, status, "internal error")
		return
	}
	writeError(c, status, err.Error())
}

// warningFor returns the sentence shown to the user for a rejected form or question.
func warningFor(err error) string {
	switch {
	case errors.Is(err, trip.ErrEndBeforeStart):
		return "End date cannot be before start date."
	case errors.Is(err, trip.ErrDateNotInFuture):
		return "Please choose dates starting tomorrow or later."
	case errors.Is(err, trip.ErrInvalidDate):
		return "Please enter dates as YYYY-MM-DD."
	case errors.Is(err, trip.ErrUnknownDestination):
		return "Please choose one of the listed destinations."
	case errors.Is(err, trip.ErrUnknownPreference):
		return "Please choose one of the listed packages."
	case errors.Is(err, trip.ErrUnknownBudget):
		return "Please choose a budget."
	case errors.Is(err, session.ErrEmptyQuestion):
		return "Please enter a question."
	case errors.Is(err, session.ErrBusy):
		return "A question is already being answered. Please wait."
	case errors.Is(err, session.ErrNotReady), errors.Is(err, session.ErrNoSession), errors.Is(err, session.ErrStale):
		return "Generate an itinerary before asking questions."
	default:
		return "Please fill in all fields."
	}
}
