package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	ierr "sop-portal/portal-backend/internal/errors"
)

// Claims identifies the caller. Role is the only input the workflow uses.
type Claims struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
}

type Service struct {
	secret       []byte
	issuer       string
	tokenTTL     time.Duration
	issueKeyHash []byte
	now          func() time.Time
}

func NewService(secret, issuer string, tokenTTL time.Duration) *Service {
	return &Service{
		secret:   []byte(secret),
		issuer:   issuer,
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

// WithIssueKeyHash sets the bcrypt hash that CheckIssueKey compares against.
func (s *Service) WithIssueKeyHash(hash string) *Service {
	s.issueKeyHash = []byte(hash)
	return s
}

// HashIssueKey returns the bcrypt hash to configure for key.
func HashIssueKey(key string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to hash issue key").
			Mark(ierr.ErrSystem)
	}
	return string(hashed), nil
}

// CheckIssueKey verifies the key presented to the token endpoint.
func (s *Service) CheckIssueKey(key string) error {
	if len(s.issueKeyHash) == 0 {
		return ierr.NewError("token issuing is not configured").
			WithHint("Token issuing is not configured").
			Mark(ierr.ErrPermissionDenied)
	}
	if err := bcrypt.CompareHashAndPassword(s.issueKeyHash, []byte(key)); err != nil {
		return ierr.WithError(err).
			WithHint("Invalid issue key").
			Mark(ierr.ErrPermissionDenied)
	}
	return nil
}

// IssueToken signs an HS256 token carrying subject and role.
func (s *Service) IssueToken(subject, role string) (string, time.Time, error) {
	if strings.TrimSpace(role) == "" {
		return "", time.Time{}, ierr.NewError("role is required").
			WithHint("A role is required").
			Mark(ierr.ErrValidation)
	}

	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iss":  s.issuer,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, ierr.WithError(err).
			WithHint("Failed to generate token").
			Mark(ierr.ErrSystem)
	}
	return signed, expiresAt, nil
}

func (s *Service) ValidateToken(token string) (*Claims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ierr.NewError("unexpected signing method").
				WithHint(fmt.Sprintf("unexpected signing method: %v", t.Header["alg"])).
				Mark(ierr.ErrPermissionDenied)
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Token parse error").
			Mark(ierr.ErrPermissionDenied)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ierr.NewError("invalid token claims").
			WithHint("Invalid token claims").
			Mark(ierr.ErrPermissionDenied)
	}

	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return nil, ierr.NewError("token missing role").
			WithHint("Token missing role").
			Mark(ierr.ErrPermissionDenied)
	}
	subject, _ := claims["sub"].(string)

	return &Claims{Subject: subject, Role: role}, nil
}
