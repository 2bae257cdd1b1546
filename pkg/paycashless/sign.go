package paycashless

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
)

// Request signing headers expected by the gateway.
const (
	HeaderSignature = "Request-Signature"
	HeaderTimestamp = "Request-Timestamp"
)

// canonicalJSON re-marshals the body so object keys are alphabetically
// sorted at every nesting level, which is what the gateway signs against.
func canonicalJSON(body []byte) ([]byte, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("canonicalize body: %w", err)
	}
	canonical, err := json.Marshal(decoded)
	if err != nil {
		return nil, fmt.Errorf("canonicalize body: %w", err)
	}
	return canonical, nil
}

// SignRequest computes the hex HMAC-SHA512 over canonical body + path + unix
// timestamp using the shared signing secret.
func SignRequest(secret string, body []byte, path string, timestamp int64) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("signing secret is required")
	}

	canonical, err := canonicalJSON(body)
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(canonical)
	mac.Write([]byte(path))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyWebhookSignature checks the gateway signature over the raw webhook
// body and timestamp. The raw bytes are signed as delivered, no
// canonicalization.
func VerifyWebhookSignature(secret string, rawBody []byte, timestamp, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(rawBody)
	mac.Write([]byte(timestamp))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
