package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/you/tradegate/domain"
)

// JWTServiceImpl implements domain.TokenService. The gateway never issues
// tokens; it inspects the ones the upstream backend mints. Validate requires
// the shared HS256 secret; PeekExpiry works without it.
type JWTServiceImpl struct {
	secretKey []byte
	issuer    string
}

// NewJWTService creates a new JWT inspection service.
func NewJWTService(secretKey, issuer string) domain.TokenService {
	return &JWTServiceImpl{
		secretKey: []byte(secretKey),
		issuer:    issuer,
	}
}

// Validate implements domain.TokenService.
func (j *JWTServiceImpl) Validate(tokenString string) (*domain.TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrTokenMalformed
		}
		return j.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, domain.ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, domain.ErrTokenMalformed
	}

	return j.extractClaims(claims)
}

// PeekExpiry reads the exp claim without verifying the signature. Used to
// decide proactive refresh; never used to grant access.
func (j *JWTServiceImpl) PeekExpiry(tokenString string) (time.Time, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return time.Time{}, domain.ErrTokenMalformed
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return time.Time{}, domain.ErrTokenMalformed
	}
	return time.Unix(int64(exp), 0), nil
}

// ExpiresWithin reports whether the token expires inside the given window.
// Malformed tokens count as expiring so callers refresh rather than trust
// them.
func (j *JWTServiceImpl) ExpiresWithin(tokenString string, window time.Duration) bool {
	exp, err := j.PeekExpiry(tokenString)
	if err != nil {
		return true
	}
	return time.Until(exp) < window
}

func (j *JWTServiceImpl) extractClaims(claims jwt.MapClaims) (*domain.TokenClaims, error) {
	out := &domain.TokenClaims{}

	switch id := claims["user_id"].(type) {
	case string:
		out.UserID = id
	case float64:
		// Some upstream versions issue numeric user IDs.
		out.UserID = strconv.FormatInt(int64(id), 10)
	default:
		return nil, domain.ErrTokenMalformed
	}

	if role, ok := claims["role"].(string); ok {
		out.Role = role
	}
	if sid, ok := claims["session_id"].(string); ok {
		out.SessionID = sid
	}
	if iat, ok := claims["iat"].(float64); ok {
		out.IssuedAt = int64(iat)
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, domain.ErrTokenMalformed
	}
	out.ExpiresAt = int64(exp)

	if time.Unix(out.ExpiresAt, 0).Before(time.Now()) {
		return nil, domain.ErrTokenExpired
	}

	return out, nil
}
