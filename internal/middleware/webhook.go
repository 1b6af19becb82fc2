package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const maxWebhookBody = 1 << 20 // 1 MB

// WebhookHMAC returns middleware that validates HMAC-SHA256 signatures over
// the raw request body. secret is resolved per request so rotated vault
// values apply without a restart. A present but invalid signature is always
// rejected; an absent one is rejected only when required is true.
func WebhookHMAC(secret func() string, header string, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := secret()
			if key == "" && required {
				writeJSONError(w, http.StatusServiceUnavailable, "webhook secret not configured")
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
			if err != nil {
				writeJSONError(w, http.StatusBadRequest, "failed to read body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sig := r.Header.Get(header)
			switch {
			case sig == "" && required:
				writeJSONError(w, http.StatusUnauthorized, "missing webhook signature")
				return
			case sig == "":
				slog.Warn("webhook accepted without signature", "path", r.URL.Path)
			case key == "" || !VerifySignature(body, sig, key):
				writeJSONError(w, http.StatusUnauthorized, "invalid webhook signature")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// VerifySignature checks an HMAC-SHA256 signature. Both raw hex and the
// "sha256=<hex>" form are accepted.
func VerifySignature(payload []byte, signature, secret string) bool {
	sig := strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}

	return hmac.Equal(sigBytes, computeHMAC(payload, secret))
}

// Sign returns the hex HMAC-SHA256 of payload, as the payment provider sends it.
func Sign(payload []byte, secret string) string {
	return hex.EncodeToString(computeHMAC(payload, secret))
}

func computeHMAC(payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}
