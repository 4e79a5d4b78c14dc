// Package auth checks the admin login and issues the bearer tokens that
// guard the game and settings endpoints.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// DefaultPassword is accepted when no password hash is configured.
const DefaultPassword = "admin"

// Errors returned by Login and Verify.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Claims are the JWT claims issued at login. Subject holds the user name.
type Claims struct {
	jwt.StandardClaims
}

// Token is an issued bearer token.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Options configures an Authenticator.
type Options struct {
	User         string
	PasswordHash string // bcrypt; empty = DefaultPassword
	Secret       string // HMAC key; empty = random per process
	TTL          time.Duration
}

// Authenticator validates credentials and signs tokens.
type Authenticator struct {
	user   string
	hash   []byte
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// New creates an Authenticator.
func New(opts Options) (*Authenticator, error) {
	if opts.User == "" {
		return nil, errors.New("auth: user must not be empty")
	}
	hash := []byte(opts.PasswordHash)
	if len(hash) == 0 {
		h, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash default password: %w", err)
		}
		hash = h
	} else if _, err := bcrypt.Cost(hash); err != nil {
		return nil, fmt.Errorf("invalid password hash: %w", err)
	}

	secret := []byte(opts.Secret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate token secret: %w", err)
		}
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Authenticator{user: opts.User, hash: hash, secret: secret, ttl: ttl, now: time.Now}, nil
}

// HashPassword returns the bcrypt hash for a config file.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Login checks the credentials and issues a token.
func (a *Authenticator) Login(user, password string) (Token, error) {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.user)) == 1
	passErr := bcrypt.CompareHashAndPassword(a.hash, []byte(password))
	if !userOK || passErr != nil {
		return Token{}, ErrInvalidCredentials
	}
	return a.Issue(user)
}

// Issue signs a token for user.
func (a *Authenticator) Issue(user string) (Token, error) {
	now := a.now()
	expires := now.Add(a.ttl)
	claims := Claims{StandardClaims: jwt.StandardClaims{
		Subject:   user,
		IssuedAt:  now.Unix(),
		ExpiresAt: expires.Unix(),
		Issuer:    "playlistroulette",
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return Token{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return Token{Token: signed, ExpiresAt: time.Unix(expires.Unix(), 0)}, nil
}

// Verify parses and validates a signed token.
func (a *Authenticator) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

type contextKey struct{}

// UserFromContext returns the user a request was authenticated as.
func UserFromContext(ctx context.Context) (string, bool) {
	user, ok := ctx.Value(contextKey{}).(string)
	return user, ok
}

// BearerToken extracts the token from the Authorization header, falling back
// to the access_token query parameter used by websocket clients.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

// Middleware rejects requests without a valid bearer token.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.Verify(BearerToken(r))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="playlistroulette"`)
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), contextKey{}, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
