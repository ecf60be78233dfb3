package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vblendo1/koisando-green-alien/internal/apperr"
	"github.com/vblendo1/koisando-green-alien/internal/middleware"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindAccessDenied, apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindTransient:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes the error body for err. Internal errors are logged and
// their message is not exposed.
func (h HandlerSet) respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	body := errorResponse{Error: string(kind), Message: err.Error(), Field: apperr.FieldOf(err)}

	switch kind {
	case apperr.KindTransient:
		c.Header("Retry-After", "1")
		h.log.Warn().Err(err).Str("request_id", middleware.RequestIDFrom(c)).Msg("transient failure")
		body.Message = "temporarily unavailable, retry later"
	case apperr.KindInternal:
		h.log.Error().Err(err).Str("request_id", middleware.RequestIDFrom(c)).Str("path", c.Request.URL.Path).Msg("request failed")
		body.Message = "internal server error"
	}
	c.AbortWithStatusJSON(status, body)
}

func (h HandlerSet) badRequest(c *gin.Context, field, msg string) {
	h.respondError(c, apperr.Validation("decode", field, msg))
}
