// Package auth verifies the bearer tokens minted by the external identity
// provider. The service never issues credentials of its own.
package auth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoKeys is returned when a manager is built without any signing key.
var ErrNoKeys = errors.New("auth: no signing keys configured")

// JWTManager validates JWT tokens used by the API. Keys are addressed by kid so
// the identity provider can rotate them without a redeploy.
type JWTManager struct {
	keys      map[string][]byte // kid -> HMAC secret
	activeKid string            // kid used when generating tokens
	duration  time.Duration     // validity of generated tokens
	leeway    time.Duration     // clock skew tolerated on exp/nbf
}

// Claims is the identity the provider vouches for: a stable user id, the
// user's current tenant and a display name.
type Claims struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

// NewJWTManager returns a manager with a single key.
func NewJWTManager(secretKey string, duration time.Duration) *JWTManager {
	return NewJWTManagerFromKeys(map[string]string{"default": secretKey}, "default", duration)
}

// NewJWTManagerFromKeys returns a manager verifying tokens signed by any of
// keys. activeKid selects the key GenerateToken signs with; when it is empty
// or unknown the lexically first kid is used.
func NewJWTManagerFromKeys(keys map[string]string, activeKid string, duration time.Duration) *JWTManager {
	m := &JWTManager{
		keys:     make(map[string][]byte, len(keys)),
		duration: duration,
	}
	kids := make([]string, 0, len(keys))
	for kid, secret := range keys {
		if secret == "" {
			continue
		}
		m.keys[kid] = []byte(secret)
		kids = append(kids, kid)
	}
	sort.Strings(kids)

	if _, ok := m.keys[activeKid]; ok {
		m.activeKid = activeKid
	} else if len(kids) > 0 {
		m.activeKid = kids[0]
	}
	return m
}

// WithLeeway sets the tolerated clock skew.
func (m *JWTManager) WithLeeway(d time.Duration) *JWTManager {
	m.leeway = d
	return m
}

// ParseKeys parses "kid:secret,kid2:secret2" as used in JWT_KEYS.
func ParseKeys(s string) (map[string]string, error) {
	keys := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kid, secret, ok := strings.Cut(pair, ":")
		if !ok || kid == "" || secret == "" {
			return nil, fmt.Errorf("auth: malformed key entry %q", pair)
		}
		keys[kid] = secret
	}
	return keys, nil
}

// GenerateToken issues a signed JWT. The identity provider does this in
// production; the service uses it only in tests and local tooling.
func (m *JWTManager) GenerateToken(userID, tenantID, name string) (string, time.Time, error) {
	secret, ok := m.keys[m.activeKid]
	if !ok {
		return "", time.Time{}, ErrNoKeys
	}

	now := time.Now()
	expiresAt := now.Add(m.duration)
	claims := &Claims{
		UserID:   userID,
		TenantID: tenantID,
		Name:     name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = m.activeKid

	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// VerifyToken parses and validates a token and returns its claims.
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	if len(m.keys) == 0 {
		return nil, ErrNoKeys
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Security check: ensure token was signed with HMAC (not asymmetric key)
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			kid = m.activeKid
		}
		secret, ok := m.keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return secret, nil
	}, jwt.WithLeeway(m.leeway), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" || claims.TenantID == "" {
		return nil, errors.New("token is missing user_id or tenant_id")
	}
	return claims, nil
}
