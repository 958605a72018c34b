package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HandleSigner creates and validates signed evidence handle tokens.
// A token has the shape handleID.expiryUnix.b64(folio).signature.
type HandleSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewHandleSigner constructs a signer with the provided secret and TTL.
func NewHandleSigner(secret string, ttl time.Duration) *HandleSigner {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &HandleSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL returns the lifetime applied to generated tokens.
func (s *HandleSigner) TTL() time.Duration {
	return s.ttl
}

// Generate returns a signed token binding the handle to the folio it opens.
func (s *HandleSigner) Generate(handleID, folio string) (string, time.Time, error) {
	if handleID == "" || folio == "" {
		return "", time.Time{}, fmt.Errorf("handleID and folio required")
	}
	if strings.Contains(handleID, ".") {
		return "", time.Time{}, fmt.Errorf("handleID must not contain '.'")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl)
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedFolio := base64.RawURLEncoding.EncodeToString([]byte(folio))
	signature := s.sign(handleID, exp, encodedFolio)
	return strings.Join([]string{handleID, exp, encodedFolio, signature}, "."), expiresAt, nil
}

// Parse validates a token and returns the handle id and folio it references.
func (s *HandleSigner) Parse(token string) (handleID, folio string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, fmt.Errorf("invalid token format")
	}
	handleID, exp, encodedFolio, signature := parts[0], parts[1], parts[2], parts[3]

	expected := s.sign(handleID, exp, encodedFolio)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return "", "", time.Time{}, fmt.Errorf("invalid token signature")
	}
	rawFolio, err := base64.RawURLEncoding.DecodeString(encodedFolio)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("decode folio: %w", err)
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("invalid timestamp")
	}
	expiresAt = time.Unix(expUnix, 0)
	if s.now().After(expiresAt) {
		return "", "", time.Time{}, fmt.Errorf("token expired")
	}
	return handleID, string(rawFolio), expiresAt, nil
}

func (s *HandleSigner) sign(handleID, exp, encodedFolio string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(handleID + "|" + exp + "|" + encodedFolio))
	return hex.EncodeToString(mac.Sum(nil))
}
