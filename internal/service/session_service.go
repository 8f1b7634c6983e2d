package service

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	sessionIssuer    = "bay-catalog"
	sessionTokenType = "session"
)

var (
	ErrUnauthorized   = errors.New("invalid password")
	ErrRateLimited    = errors.New("rate limited")
	ErrSessionInvalid = errors.New("session invalid")
	ErrSessionExpired = errors.New("session expired")
)

// SessionClaims es el contenido firmado de la cookie de sesión.
type SessionClaims struct {
	IsAdmin   bool   `json:"is_admin"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// SessionService emite y valida las sesiones de administrador.
type SessionService struct {
	adminPassword []byte
	secret        []byte
	ttl           time.Duration
	issuer        string
	revoked       SessionRevocationStore
	limiter       LoginRateLimiter
}

func NewSessionService(adminPassword, secret string, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionService{
		adminPassword: []byte(adminPassword),
		secret:        []byte(secret),
		ttl:           ttl,
		issuer:        sessionIssuer,
		revoked:       NewMemoryRevocationStore(),
	}
}

// NewSessionServiceWithStores permite inyectar stores externos (Redis). Los nil se ignoran.
func NewSessionServiceWithStores(adminPassword, secret string, ttl time.Duration, revoked SessionRevocationStore, limiter LoginRateLimiter) *SessionService {
	svc := NewSessionService(adminPassword, secret, ttl)
	if revoked != nil {
		svc.revoked = revoked
	}
	svc.limiter = limiter
	return svc
}

// TTL devuelve la vida de cada token emitido.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Login compara la contraseña y devuelve siempre un token: admin si coincide,
// no-admin junto con ErrUnauthorized si no coincide. Solo los intentos fallidos
// cuentan para el rate limit.
func (s *SessionService) Login(clientKey, password string) (string, error) {
	if s.limiter != nil && !s.limiter.Allow(clientKey) {
		return "", ErrRateLimited
	}
	if len(s.adminPassword) == 0 || subtle.ConstantTimeCompare([]byte(password), s.adminPassword) != 1 {
		if s.limiter != nil {
			s.limiter.RecordFailure(clientKey)
		}
		token, err := s.Issue(false)
		if err != nil {
			return "", err
		}
		return token, ErrUnauthorized
	}
	return s.Issue(true)
}

// Issue firma un token de sesión nuevo.
func (s *SessionService) Issue(isAdmin bool) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrSessionInvalid
	}
	now := time.Now().UTC()
	claims := SessionClaims{
		IsAdmin:   isAdmin,
		TokenType: sessionTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse valida firma, emisor, expiración y revocación.
func (s *SessionService) Parse(token string) (SessionClaims, error) {
	if len(s.secret) == 0 {
		return SessionClaims{}, ErrSessionInvalid
	}
	if strings.TrimSpace(token) == "" {
		return SessionClaims{}, ErrSessionInvalid
	}
	claims, err := s.parseToken(token)
	if err != nil {
		return SessionClaims{}, err
	}
	if claims.TokenType != sessionTokenType || claims.ID == "" {
		return SessionClaims{}, ErrSessionInvalid
	}
	if strings.TrimSpace(claims.Issuer) != s.issuer {
		return SessionClaims{}, ErrSessionInvalid
	}
	revoked, err := s.revoked.IsRevoked(claims.ID)
	if err != nil || revoked {
		return SessionClaims{}, ErrSessionInvalid
	}
	return claims, nil
}

// Logout revoca el token por el resto de su vida. Tokens vacíos o inválidos se ignoran.
func (s *SessionService) Logout(token string) error {
	claims, err := s.Parse(token)
	if err != nil {
		return nil
	}
	ttl := s.ttl
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}
	return s.revoked.Revoke(claims.ID, ttl)
}

func (s *SessionService) parseToken(tokenString string) (SessionClaims, error) {
	var claims SessionClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return SessionClaims{}, ErrSessionExpired
		}
		return SessionClaims{}, ErrSessionInvalid
	}
	return claims, nil
}
