package admin

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/cryptocardshopofficial-collab/CRYPBUY/internal/clock"
)

var (
	ErrInvalidCreds = errors.New("invalid credentials")
	ErrDisabled     = errors.New("admin login is disabled")
)

type Config struct {
	Login        string
	PasswordHash string
	JWTSecret    []byte
	JWTTTL       time.Duration
}

type Service struct {
	cfg   Config
	clock clock.Clock
}

func NewService(cfg Config, clk clock.Clock) *Service {
	return &Service{cfg: cfg, clock: clk}
}

// Enabled reports whether admin routes require a token.
func (s *Service) Enabled() bool {
	return s.cfg.PasswordHash != ""
}

func (s *Service) Authenticate(login, password string) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}
	if login != s.cfg.Login {
		return "", ErrInvalidCreds
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCreds
	}
	now := s.clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   login,
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.cfg.JWTSecret)
}

// Verify checks a token issued by Authenticate and returns its subject.
func (s *Service) Verify(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	// Time-based claims are checked below against the service clock.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return s.cfg.JWTSecret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidCreds
	}
	now := s.clock.Now()
	if !claims.VerifyExpiresAt(now, true) || !claims.VerifyNotBefore(now, false) {
		return "", ErrInvalidCreds
	}
	if claims.Subject != s.cfg.Login {
		return "", ErrInvalidCreds
	}
	return claims.Subject, nil
}
