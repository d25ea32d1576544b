package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Strob0t/mfi-api/internal/domain/access"
)

// LocalUserID is the principal injected when authentication is disabled.
const LocalUserID = "00000000-0000-0000-0000-000000000000"

// publicPaths are exempt from authentication.
var publicPaths = map[string]bool{
	"/health":       true,
	"/health/ready": true,
	"/MFI/logo":     true,
}

// publicPrefixes are path prefixes exempt from authentication.
var publicPrefixes = []string{"/assets/"}

func isPublic(path string) bool {
	if publicPaths[path] {
		return true
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Claims are the access token claims. The subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
	Realm    string `json:"realm,omitempty"`
	Role     string `json:"role,omitempty"`
}

// KeyFunc returns the current HMAC key. It is called per request so a key
// rotated by a secret reload takes effect immediately.
type KeyFunc func() []byte

// Auth returns middleware that verifies "Authorization: Bearer <jwt>" and
// stores the resulting access.Principal in the request context.
// When enabled is false, a local super principal is injected instead.
func Auth(key KeyFunc, issuer string, enabled bool) func(http.Handler) http.Handler {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				p := &access.Principal{UserID: LocalUserID, Username: "local", Realm: access.SuperName}
				next.ServeHTTP(w, r.WithContext(access.WithPrincipal(r.Context(), p)))
				return
			}

			if isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				WriteProblem(w, http.StatusUnauthorized, TypeAuthorization, "authorization required", nil)
				return
			}
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				WriteProblem(w, http.StatusUnauthorized, TypeAuthorization, "invalid authorization header", nil)
				return
			}

			p, err := verify(parser, key, token)
			if err != nil {
				WriteProblem(w, http.StatusUnauthorized, TypeAuthorization, "invalid access token", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(access.WithPrincipal(r.Context(), p)))
		})
	}
}

func verify(parser *jwt.Parser, key KeyFunc, raw string) (*access.Principal, error) {
	var claims Claims
	_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		k := key()
		if len(k) == 0 {
			return nil, errors.New("no signing key configured")
		}
		return k, nil
	})
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return &access.Principal{
		UserID:   claims.Subject,
		Username: claims.Username,
		Realm:    claims.Realm,
		Role:     claims.Role,
	}, nil
}

// SignToken issues an HS256 access token for p valid for ttl.
func SignToken(key []byte, issuer string, p access.Principal, ttl time.Duration) (string, error) {
	if len(key) == 0 {
		return "", errors.New("sign token: empty key")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username: p.Username,
		Realm:    p.Realm,
		Role:     p.Role,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}
