package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"rescue/pkg/domain"
	dErrors "rescue/pkg/domain-errors"
)

// DefaultTTL is how long issued tokens stay valid.
const DefaultTTL = 7 * 24 * time.Hour

// Claims are the access token claims. Subject carries the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTService issues and validates HS256 access tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	ttl        time.Duration
	now        func() time.Time
}

func NewJWTService(signingKey string, issuer string, audience string, ttl time.Duration) *JWTService {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
		now:        time.Now,
	}
}

// GenerateAccessToken signs a token for userID and returns it with its expiry.
func (s *JWTService) GenerateAccessToken(userID domain.UserID) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signedToken, expiresAt, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// ExtractUserIDFromToken validates the token and parses its subject.
func (s *JWTService) ExtractUserIDFromToken(tokenString string) (domain.UserID, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return domain.UserID{}, err
	}
	return domain.ParseUserID(claims.Subject)
}
