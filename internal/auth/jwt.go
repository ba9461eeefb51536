package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token kinds carried in the "type" claim. The realtime core accepts only
// TokenTypeAccess; refresh tokens are only ever exchanged at the HTTP
// refresh endpoint.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Typed verification failures (§4.1).
var (
	ErrMalformed      = errors.New("malformed token")
	ErrExpired        = errors.New("expired token")
	ErrWrongType      = errors.New("wrong token type")
	ErrUnknownSubject = errors.New("unknown subject")
)

// Claims is the decoded JWT payload. UserID and Email are carried for
// convenience; Type and ID (the jti) drive the access/refresh distinction
// and the refresh-token allowlist.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Type   string    `json:"type"`
	jwt.RegisteredClaims
}

// JWTService mints and verifies access and refresh tokens with a shared
// secret. Tokens are always signed with HS256; the algorithm is not
// configurable here, and verification accepts any HMAC signing method.
type JWTService struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
}

// NewJWTService builds a service whose access tokens expire after
// expiryHours. Refresh tokens default to 30 days; use
// NewJWTServiceWithRefresh to override both lifetimes explicitly.
func NewJWTService(secret string, expiryHours int) *JWTService {
	return &JWTService{
		secret:        []byte(secret),
		accessExpiry:  time.Duration(expiryHours) * time.Hour,
		refreshExpiry: 30 * 24 * time.Hour,
	}
}

// NewJWTServiceWithRefresh builds a service with independent access and
// refresh lifetimes, per the access-token-minutes / refresh-token-days
// environment knobs.
func NewJWTServiceWithRefresh(secret string, accessExpiry, refreshExpiry time.Duration) *JWTService {
	return &JWTService{
		secret:        []byte(secret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
	}
}

// GenerateToken mints an access token. Kept for backward compatibility with
// callers that only need an access token and don't care about the jti.
func (s *JWTService) GenerateToken(userID uuid.UUID, email string) (string, error) {
	token, _, err := s.generate(userID, email, TokenTypeAccess, s.accessExpiry)
	return token, err
}

// GenerateAccessToken mints an access token and returns its jti alongside it.
func (s *JWTService) GenerateAccessToken(userID uuid.UUID, email string) (token string, jti string, err error) {
	return s.generate(userID, email, TokenTypeAccess, s.accessExpiry)
}

// GenerateRefreshToken mints a refresh token and returns its jti, so the
// caller can register it in the Session Store's refresh allowlist.
func (s *JWTService) GenerateRefreshToken(userID uuid.UUID, email string) (token string, jti string, err error) {
	return s.generate(userID, email, TokenTypeRefresh, s.refreshExpiry)
}

// RefreshTTL reports the configured refresh-token lifetime, so callers can
// size the Session Store allowlist TTL to match.
func (s *JWTService) RefreshTTL() time.Duration {
	return s.refreshExpiry
}

func (s *JWTService) generate(userID uuid.UUID, email, typ string, ttl time.Duration) (string, string, error) {
	jti := uuid.New().String()
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

// ValidateToken decodes and verifies token, accepting any token type. Use
// ValidateAccessToken or ValidateRefreshToken to additionally enforce the
// type claim.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrMalformed
		}
		return s.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}

	if !token.Valid {
		return nil, ErrMalformed
	}
	if claims.UserID == uuid.Nil {
		return nil, ErrUnknownSubject
	}

	return claims, nil
}

// ValidateAccessToken verifies token and additionally requires type=access,
// the only type the realtime core accepts for connection auth (§4.1).
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeAccess {
		return nil, ErrWrongType
	}
	return claims, nil
}

// ValidateRefreshToken verifies token and requires type=refresh. Callers
// must additionally consult the Session Store's refresh_jti allowlist
// before honoring it.
func (s *JWTService) ValidateRefreshToken(tokenString string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeRefresh {
		return nil, ErrWrongType
	}
	return claims, nil
}
