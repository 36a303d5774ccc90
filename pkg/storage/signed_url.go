package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrTokenInvalid covers malformed, tampered and expired download tokens.
var ErrTokenInvalid = errors.New("invalid download token")

// TokenSigner mints and verifies HMAC download tokens for archived
// exports. The token is the only credential for a download, so expiry
// doubles as the archive retention window.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenSigner constructs a signer. A non-positive ttl falls back to 24h.
func NewTokenSigner(secret string, ttl time.Duration) *TokenSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenSigner{secret: []byte(secret), ttl: ttl}
}

// Generate signs a token binding the institute to the archived file.
func (s *TokenSigner) Generate(instituteID, name string) (string, time.Time, error) {
	if instituteID == "" || name == "" {
		return "", time.Time{}, errors.New("instituteID and name required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("signing secret missing")
	}
	expiresAt := time.Now().Add(s.ttl)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(name))
	token := strings.Join([]string{
		instituteID,
		strconv.FormatInt(expiresAt.Unix(), 10),
		encoded,
		s.sign(instituteID, strconv.FormatInt(expiresAt.Unix(), 10), encoded),
	}, ".")
	return token, expiresAt, nil
}

// Parse verifies the signature and expiry and returns the embedded
// institute ID and file name.
func (s *TokenSigner) Parse(token string) (instituteID, name string, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", ErrTokenInvalid
	}
	if !hmac.Equal([]byte(s.sign(parts[0], parts[1], parts[2])), []byte(parts[3])) {
		return "", "", ErrTokenInvalid
	}
	expUnix, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || time.Now().After(time.Unix(expUnix, 0)) {
		return "", "", ErrTokenInvalid
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return "", "", ErrTokenInvalid
	}
	return parts[0], string(raw), nil
}

func (s *TokenSigner) sign(instituteID, ts, encodedName string) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%s|%s", instituteID, ts, encodedName)
	return hex.EncodeToString(mac.Sum(nil))
}
