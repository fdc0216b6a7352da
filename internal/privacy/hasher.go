package privacy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
)

const segmentIDLength = 16

// Hasher derives pseudonymous identifiers. Segment IDs are scoped to a
// time window: the per-window HMAC key is derived with HKDF using the
// window label as salt, so the same user maps to unrelated segments in
// different windows and cannot be tracked longitudinally. No reverse
// mapping is ever stored.
type Hasher struct {
	secret            []byte
	aggregationWindow string // weekly or monthly
}

func NewHasher(secret, aggregationWindow string) Hasher {
	return Hasher{
		secret:            []byte(secret),
		aggregationWindow: aggregationWindow,
	}
}

// TimeWindow formats t as the coarse period identifier records carry
// instead of a timestamp.
func (h Hasher) TimeWindow(t time.Time) string {
	if h.aggregationWindow == "monthly" {
		return t.UTC().Format("2006-01")
	}
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// SegmentID derives the window-scoped pseudonymous segment identifier.
// Deterministic within one window, unlinkable across windows.
func (h Hasher) SegmentID(rawID, timeWindow string) string {
	key := h.windowKey(timeWindow)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(rawID))
	mac.Write([]byte{'|'})
	mac.Write([]byte(timeWindow))
	mac.Write([]byte{'|'})
	mac.Write([]byte(h.aggregationWindow))
	return hex.EncodeToString(mac.Sum(nil))[:segmentIDLength]
}

// UserHash is the stable (window-independent) hash keying consent
// records and audit entries. It never appears in anonymized data.
func (h Hasher) UserHash(rawID string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte("user|"))
	mac.Write([]byte(rawID))
	return hex.EncodeToString(mac.Sum(nil))[:32]
}

// Fingerprint hashes request metadata (IP, user agent) for audit
// fields.
func (h Hasher) Fingerprint(value string) string {
	if value == "" {
		return ""
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte("meta|"))
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))[:32]
}

func (h Hasher) windowKey(timeWindow string) []byte {
	r := hkdf.New(sha256.New, h.secret, []byte(timeWindow), []byte("cohort-segment-v1"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		// sha256 HKDF cannot fail to produce 32 bytes
		panic(err)
	}
	return key
}
