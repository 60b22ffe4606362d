package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/Dan9191/bookkeeping-service/internal/models"
)

// GenerateHMAC returns the hex HMAC-SHA256 of data
func GenerateHMAC(data []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SignEntry computes the signature of a history entry.
// The Signature field itself is excluded from the signed payload.
func SignEntry(entry models.HistoryEntry, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("signing secret is empty")
	}
	entry.Signature = ""
	payload, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("failed to encode history entry: %w", err)
	}
	return GenerateHMAC(payload, secret), nil
}

// VerifyEntry reports whether entry carries a valid signature for secret
func VerifyEntry(entry models.HistoryEntry, secret string) bool {
	if entry.Signature == "" {
		return false
	}
	want, err := SignEntry(entry, secret)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(want), []byte(entry.Signature))
}
