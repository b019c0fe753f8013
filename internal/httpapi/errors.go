package httpapi

import (
	"errors"

	"github.com/book-expert/voice-service/internal/core"
	"github.com/gofiber/fiber/v2"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string         `json:"error"`
	Kind  core.ErrorKind `json:"kind,omitempty"`
}

var kindStatus = map[core.ErrorKind]int{
	core.KindInputMissing:         fiber.StatusBadRequest,
	core.KindReferenceUnavailable: fiber.StatusNotFound,
	core.KindConversionFailure:    fiber.StatusUnprocessableEntity,
	core.KindSynthesisFailure:     fiber.StatusBadGateway,
	core.KindSessionNotFound:      fiber.StatusNotFound,
	core.KindVoiceExists:          fiber.StatusConflict,
	core.KindVoiceNotFound:        fiber.StatusNotFound,
}

var denialStatus = map[core.DenialReason]int{
	core.DenialUnknownKey:      fiber.StatusUnauthorized,
	core.DenialVoiceNotGranted: fiber.StatusForbidden,
	core.DenialVoiceNotFound:   fiber.StatusNotFound,
}

// statusOf maps an error kind to an HTTP status code.
func statusOf(err error) int {
	var authErr *core.AuthorizationError
	if errors.As(err, &authErr) {
		status, ok := denialStatus[authErr.Reason]
		if ok {
			return status
		}

		return fiber.StatusForbidden
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}

	status, ok := kindStatus[core.KindOf(err)]
	if !ok {
		return fiber.StatusInternalServerError
	}

	return status
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := statusOf(err)

	if status >= fiber.StatusInternalServerError {
		s.log.Error("%s %s failed: %v", c.Method(), c.Path(), err)
	} else {
		s.log.Warn("%s %s rejected (%d): %v", c.Method(), c.Path(), status, err)
	}

	kind := core.KindOf(err)
	if kind == core.KindInternal {
		kind = ""
	}

	return c.Status(status).JSON(errorBody{Error: err.Error(), Kind: kind})
}
