package middleware

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vblendo1/koisando-green-alien/internal/security"
)

const (
	signatureMaxAge  = 5 * time.Minute
	signatureMaxSkew = 2 * time.Minute
)

// Signature checks the HMAC signature of write requests and rejects reused
// nonces. Reads pass through. It must run after Auth.
func Signature(secret string, nonces redis.Cmdable, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		actor, ok := ActorFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "authentication required"})
			return
		}

		signed, err := security.ExtractSignatureHeaders(c.Request.Header)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "signature_required", "message": err.Error()})
			return
		}

		requestTime, err := time.Parse(time.RFC3339, signed.Date)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_date", "message": "date must be RFC3339"})
			return
		}
		if time.Since(requestTime) > signatureMaxAge || time.Until(requestTime) > signatureMaxSkew {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "request_expired", "message": "signature date out of range"})
			return
		}

		rawBody, err := c.GetRawData()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_body", "message": "could not read body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(rawBody))

		if !security.ValidateSignature(secret, actor.UserID, c.Request, rawBody, signed) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature", "message": "signature mismatch"})
			return
		}

		nonceKey := fmt.Sprintf("sig:%s:%s", actor.UserID, signed.Nonce)
		fresh, err := nonces.SetNX(c.Request.Context(), nonceKey, "1", signatureMaxAge).Result()
		if err != nil {
			log.Error().Err(err).Msg("signature nonce check failed")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "transient", "message": "nonce store unavailable"})
			return
		}
		if !fresh {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "replay_detected", "message": "nonce already used"})
			return
		}

		c.Next()
	}
}
