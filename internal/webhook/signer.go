// Package webhook delivers rendered reports to webhook consumers.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

var (
	// ErrReplayWindowExceeded is returned when timestamp is outside replay window.
	ErrReplayWindowExceeded = errors.New("timestamp outside replay window")
	// ErrInvalidSignature is returned when signature verification fails.
	ErrInvalidSignature = errors.New("invalid signature")
)

// DefaultReplayWindow is the default replay protection window for receivers.
const DefaultReplayWindow = 5 * time.Minute

// signaturePrefix versions the signature scheme in the header value.
const signaturePrefix = "v1="

// Signer produces HMAC-SHA256 signatures over "{timestamp}.{body}".
// A Signer with an empty secret signs nothing.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a Signer for secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret), now: time.Now}
}

// Enabled reports whether a secret is configured.
func (s *Signer) Enabled() bool {
	return s != nil && len(s.secret) > 0
}

// Sign returns the unix timestamp and signature header values for body.
// The signature is empty when signing is disabled.
func (s *Signer) Sign(body []byte) (timestamp, signature string) {
	now := time.Now
	if s != nil && s.now != nil {
		now = s.now
	}
	ts := now().Unix()
	timestamp = strconv.FormatInt(ts, 10)
	if !s.Enabled() {
		return timestamp, ""
	}
	return timestamp, signaturePrefix + computeSignature(s.secret, ts, body)
}

// VerifySignature checks a signature header value as a receiver would.
func VerifySignature(secret, signature string, timestamp int64, body []byte, now time.Time, replayWindow time.Duration) error {
	age := now.Unix() - timestamp
	if age < 0 {
		age = -age
	}
	if age > int64(replayWindow.Seconds()) {
		return ErrReplayWindowExceeded
	}

	expected := signaturePrefix + computeSignature([]byte(secret), timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

func computeSignature(secret []byte, timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(strconv.AppendInt(nil, timestamp, 10))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
