package platform

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	// Apple rejects developer tokens living longer than six months.
	appleDevTokenMaxTTL = 180 * 24 * time.Hour
	appleDevTokenAud    = "appstoreconnect-v1"

	// Re-sign when the cached token is within this window of expiring.
	appleDevTokenRefreshSlack = time.Hour
)

// AppleDeveloperTokenSource signs and caches the Apple Music developer token
// (ES256 JWT). The cached value and its expiry are owned by this instance,
// not by package-level state.
type AppleDeveloperTokenSource struct {
	teamID string
	keyID  string
	key    *ecdsa.PrivateKey
	ttl    time.Duration
	now    func() time.Time

	mu        sync.Mutex
	cached    string
	cachedExp time.Time
}

// NewAppleDeveloperTokenSource parses the ES256 private key (PEM, PKCS8 or
// SEC1) and returns a signing source. TTL is clamped to Apple's 6-month cap.
func NewAppleDeveloperTokenSource(teamID, keyID string, pemKey []byte, ttl time.Duration) (*AppleDeveloperTokenSource, error) {
	teamID = strings.TrimSpace(teamID)
	keyID = strings.TrimSpace(keyID)
	if teamID == "" || keyID == "" {
		return nil, errors.New("apple developer token requires team id and key id")
	}
	key, err := parseECPrivateKey(pemKey)
	if err != nil {
		return nil, fmt.Errorf("parse apple private key: %w", err)
	}
	if ttl <= 0 || ttl > appleDevTokenMaxTTL {
		ttl = appleDevTokenMaxTTL
	}
	return &AppleDeveloperTokenSource{
		teamID: teamID,
		keyID:  keyID,
		key:    key,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Token returns the cached developer token, re-signing when it is near expiry.
func (s *AppleDeveloperTokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	if s.cached != "" && now.Before(s.cachedExp.Add(-appleDevTokenRefreshSlack)) {
		return s.cached, nil
	}
	exp := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    s.teamID,
		Audience:  jwt.ClaimStrings{appleDevTokenAud},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = s.keyID
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign apple developer token: %w", err)
	}
	s.cached = signed
	s.cachedExp = exp
	return signed, nil
}

func parseECPrivateKey(pemKey []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("invalid pem")
	}
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not ecdsa")
	}
	return key, nil
}
