// Package resume implements HMAC-signed resumption tokens: a fixed
// 40-byte little-endian payload followed by a 32-byte HMAC-SHA256
// signature (spec §3 "ResumeToken", §4.3 "Resume token lifecycle",
// property 6).
package resume

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
)

const (
	PayloadSize      = 40
	SignatureSize    = 32
	SignedTokenSize  = PayloadSize + SignatureSize

	DefaultExpiryMs      = 300_000 // 5 minutes
	DefaultMaxClockSkewMs = 30_000  // 30 seconds
)

// Token is the decoded resume payload.
type Token struct {
	SessionID            uint64
	ClientID              uint64
	LastAppliedStateID    uint64
	LastAckedInputSeq     uint64
	IssuedAtMs            uint64
}

// New constructs a Token with IssuedAtMs set by the caller (the session
// layer stamps the current time, keeping this package clock-free — see
// clock.Clock for the injectable time source used elsewhere).
func New(sessionID, clientID, lastAppliedStateID, lastAckedInputSeq, issuedAtMs uint64) Token {
	return Token{
		SessionID:          sessionID,
		ClientID:           clientID,
		LastAppliedStateID: lastAppliedStateID,
		LastAckedInputSeq:  lastAckedInputSeq,
		IssuedAtMs:         issuedAtMs,
	}
}

func (t Token) encodePayload() []byte {
	buf := make([]byte, PayloadSize)
	binary.LittleEndian.PutUint64(buf[0:8], t.SessionID)
	binary.LittleEndian.PutUint64(buf[8:16], t.ClientID)
	binary.LittleEndian.PutUint64(buf[16:24], t.LastAppliedStateID)
	binary.LittleEndian.PutUint64(buf[24:32], t.LastAckedInputSeq)
	binary.LittleEndian.PutUint64(buf[32:40], t.IssuedAtMs)
	return buf
}

func decodePayload(buf []byte) Token {
	return Token{
		SessionID:          binary.LittleEndian.Uint64(buf[0:8]),
		ClientID:           binary.LittleEndian.Uint64(buf[8:16]),
		LastAppliedStateID: binary.LittleEndian.Uint64(buf[16:24]),
		LastAckedInputSeq:  binary.LittleEndian.Uint64(buf[24:32]),
		IssuedAtMs:         binary.LittleEndian.Uint64(buf[32:40]),
	}
}

func hmacSHA256(key, payload []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return mac.Sum(nil)
}

// EncodeSigned returns the 72-byte payload∥signature form, signed with
// key (the session's HMAC secret).
func (t Token) EncodeSigned(key []byte) []byte {
	payload := t.encodePayload()
	sig := hmacSHA256(key, payload)
	out := make([]byte, 0, SignedTokenSize)
	out = append(out, payload...)
	out = append(out, sig...)
	return out
}

// DecodeSigned verifies data's HMAC under key in constant time and
// returns the decoded Token, or (Token{}, false) on any mismatch
// (wrong length, tampered payload, or wrong key).
func DecodeSigned(data, key []byte) (Token, bool) {
	if len(data) != SignedTokenSize {
		return Token{}, false
	}
	payload := data[:PayloadSize]
	sig := data[PayloadSize:]
	expected := hmacSHA256(key, payload)
	if subtle.ConstantTimeCompare(sig, expected) != 1 {
		return Token{}, false
	}
	return decodePayload(payload), true
}

// IsValidTimestamp reports whether the token's IssuedAtMs is within
// [now-expiry, now+skew].
func (t Token) IsValidTimestamp(expiryMs, nowMs, maxSkewMs uint64) bool {
	if t.IssuedAtMs > nowMs+maxSkewMs {
		return false
	}
	if nowMs < t.IssuedAtMs {
		return true
	}
	return nowMs-t.IssuedAtMs <= expiryMs
}
