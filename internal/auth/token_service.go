package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/boardhub/boardhub/internal/models"
)

// DefaultSessionTokenTTL defines the fallback validity period for session tokens.
const DefaultSessionTokenTTL = 24 * time.Hour

// resetTokenType marks password-reset tokens so they can never be used as
// session tokens and vice versa.
const resetTokenType = "PasswordReset"

var (
	// ErrMalformedToken is returned when a token fails to decode or its signature is invalid.
	ErrMalformedToken = errors.New("token: malformed")
	// ErrExpiredToken signals a session token past its expiry.
	ErrExpiredToken = errors.New("token: expired")
	// ErrRevokedToken is returned when the user's stored token_version no longer
	// matches the one embedded in the token.
	ErrRevokedToken = errors.New("token: revoked")
)

// TokenConfig bundles the configuration required to build a TokenService.
type TokenConfig struct {
	Secret     string
	Issuer     string
	SessionTTL time.Duration
	Clock      func() time.Time
}

// Claims represents the custom claims embedded in issued tokens.
type Claims struct {
	UserID       string `json:"uid"`
	TokenVersion string `json:"token_version"`
	TokenType    string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and validates session and password-reset tokens.
//
// Session tokens carry an absolute expiry; password-reset tokens carry none
// and are gated solely by the token_version match, so any later password
// change invalidates every outstanding reset token for that user.
type TokenService struct {
	db     *gorm.DB
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService constructs a TokenService instance.
func NewTokenService(db *gorm.DB, cfg TokenConfig) (*TokenService, error) {
	if db == nil {
		return nil, errors.New("token service: db is required")
	}
	if cfg.Secret == "" {
		return nil, errors.New("token service: secret must be provided")
	}

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTokenTTL
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &TokenService{
		db:     db,
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttl:    ttl,
		now:    now,
	}, nil
}

// IssueSessionToken issues a signed session token for the user.
func (s *TokenService) IssueSessionToken(user *models.User) (string, error) {
	if user == nil || user.ID == "" {
		return "", errors.New("token service: user is required")
	}

	now := s.now()
	claims := &Claims{
		UserID:       user.ID,
		TokenVersion: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	return s.sign(claims)
}

// IssuePasswordResetToken issues a reset token whose validity is gated only
// by the user's token_version.
func (s *TokenService) IssuePasswordResetToken(user *models.User) (string, error) {
	if user == nil || user.ID == "" {
		return "", errors.New("token service: user is required")
	}

	now := s.now()
	claims := &Claims{
		UserID:       user.ID,
		TokenVersion: user.TokenVersion,
		TokenType:    resetTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  user.ID,
			Issuer:   s.issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}

	return s.sign(claims)
}

// VerifySessionToken validates a session token and returns the user it belongs to.
func (s *TokenService) VerifySessionToken(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "" {
		return nil, ErrMalformedToken
	}

	return s.checkVersion(ctx, claims)
}

// VerifyPasswordResetToken validates a reset token and returns the user it belongs to.
func (s *TokenService) VerifyPasswordResetToken(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != resetTokenType {
		return nil, ErrMalformedToken
	}

	return s.checkVersion(ctx, claims)
}

func (s *TokenService) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token service: sign: %w", err)
	}
	return signed, nil
}

func (s *TokenService) parse(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrMalformedToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrMalformedToken
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, ErrMalformedToken
	}
	if claims.UserID == "" || claims.TokenVersion == "" {
		return nil, ErrMalformedToken
	}

	return &claims, nil
}

// checkVersion compares the embedded token_version against the stored one.
// A missing user is indistinguishable from a rotated nonce on purpose.
func (s *TokenService) checkVersion(ctx context.Context, claims *Claims) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRevokedToken
		}
		return nil, fmt.Errorf("token service: load user: %w", err)
	}

	if user.TokenVersion != claims.TokenVersion {
		return nil, ErrRevokedToken
	}

	return &user, nil
}
