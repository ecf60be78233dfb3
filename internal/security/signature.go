package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

const (
	HeaderSignature = "X-Members-Signature"
	HeaderDate      = "X-Members-Date"
	HeaderNonce     = "X-Members-Nonce"
)

var ErrMissingSignature = errors.New("missing signature headers")

type SignedRequest struct {
	Date      string
	Nonce     string
	Signature string
}

func ComputeBodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ComputeSignature signs the canonical request: user id, method, path, raw
// query, body hash, date and nonce joined by newlines.
func ComputeSignature(secret, userID, method, path, query, bodyHash, date, nonce string) string {
	data := strings.Join([]string{
		userID,
		strings.ToUpper(method),
		path,
		query,
		bodyHash,
		date,
		nonce,
	}, "\n")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func ValidateSignature(secret, userID string, r *http.Request, body []byte, signed SignedRequest) bool {
	expected := ComputeSignature(secret, userID, r.Method, r.URL.Path, r.URL.RawQuery, ComputeBodyHash(body), signed.Date, signed.Nonce)
	return hmac.Equal([]byte(signed.Signature), []byte(expected))
}

func ExtractSignatureHeaders(h http.Header) (SignedRequest, error) {
	signed := SignedRequest{
		Date:      h.Get(HeaderDate),
		Nonce:     h.Get(HeaderNonce),
		Signature: h.Get(HeaderSignature),
	}
	if signed.Date == "" || signed.Nonce == "" || signed.Signature == "" {
		return SignedRequest{}, ErrMissingSignature
	}
	return signed, nil
}
