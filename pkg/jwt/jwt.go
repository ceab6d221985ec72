package jwt

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
)

const (
	contextKeyToken   = "jwt"
	contextKeySubject = "jwtSubject"
)

var (
	ErrJWTInvalidClaims = echo.NewHTTPError(http.StatusUnauthorized, "invalid jwt claims")
	ErrJWTMissing       = echo.NewHTTPError(http.StatusUnauthorized, "missing jwt")
)

// Auth issues and verifies HMAC signed tokens. The subject of a token is the account acting on the API.
type Auth struct {
	issuer         string
	sessionTimeout time.Duration
	secret         []byte
}

func NewAuth(issuer string, sessionTimeout time.Duration, secret string) (*Auth, error) {
	if len(issuer) == 0 {
		return nil, errors.New("issuer must not be empty")
	}
	if len(secret) < 16 {
		return nil, errors.New("secret must be at least 16 characters long")
	}

	return &Auth{
		issuer:         issuer,
		sessionTimeout: sessionTimeout,
		secret:         []byte(secret),
	}, nil
}

type AuthClaims struct {
	jwt.StandardClaims
}

func (c *AuthClaims) compare(field string, expected string) bool {
	if field == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(field), []byte(expected)) != 0
}

func (c *AuthClaims) VerifySubject(expected string) bool {
	return c.compare(c.Subject, expected)
}

// Middleware verifies the token of every request not skipped and stores its subject in the context.
// allow may reject valid tokens, e.g. to restrict a route group to certain subjects.
func (j *Auth) Middleware(skipper middleware.Skipper, allow func(c echo.Context, claims *AuthClaims) bool) echo.MiddlewareFunc {

	config := middleware.JWTConfig{
		ContextKey: contextKeyToken,
		Claims:     &AuthClaims{},
		SigningKey: j.secret,
		ErrorHandlerWithContext: func(err error, c echo.Context) error {
			return echo.NewHTTPError(http.StatusUnauthorized, fmt.Sprintf("%s: %s", ErrJWTMissing.Message, err))
		},
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {

		// verifies and extracts the token
		verify := middleware.JWTWithConfig(config)(func(c echo.Context) error {
			return nil
		})

		return func(c echo.Context) error {

			// skip unprotected endpoints
			if skipper != nil && skipper(c) {
				return next(c)
			}

			if err := verify(c); err != nil {
				return err
			}

			token, ok := c.Get(contextKeyToken).(*jwt.Token)
			if !ok {
				return fmt.Errorf("expected *jwt.Token, got %T", c.Get(contextKeyToken))
			}

			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}

			claims, ok := token.Claims.(*AuthClaims)
			if !ok || claims.Subject == "" || !claims.VerifyIssuer(j.issuer, true) {
				return ErrJWTInvalidClaims
			}

			if allow != nil && !allow(c, claims) {
				return ErrJWTInvalidClaims
			}

			c.Set(contextKeySubject, claims.Subject)
			return next(c)
		}
	}
}

// IssueJWT issues a token for the given subject.
func (j *Auth) IssueJWT(subject string) (string, error) {
	if subject == "" {
		return "", errors.New("subject must not be empty")
	}

	now := time.Now()

	stdClaims := jwt.StandardClaims{
		Subject:   subject,
		Issuer:    j.issuer,
		Id:        fmt.Sprintf("%d", now.UnixNano()),
		IssuedAt:  now.Unix(),
		NotBefore: now.Unix(),
	}

	if j.sessionTimeout > 0 {
		stdClaims.ExpiresAt = now.Add(j.sessionTimeout).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &AuthClaims{StandardClaims: stdClaims})
	return token.SignedString(j.secret)
}

// VerifyJWT returns the subject of a valid token.
func (j *Auth) VerifyJWT(token string) (string, bool) {
	t, err := jwt.ParseWithClaims(token, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil || !t.Valid {
		return "", false
	}

	claims, ok := t.Claims.(*AuthClaims)
	if !ok || claims.Subject == "" || !claims.VerifyIssuer(j.issuer, true) {
		return "", false
	}
	return claims.Subject, true
}

// SubjectFromContext returns the subject stored by the middleware.
func SubjectFromContext(c echo.Context) (string, bool) {
	subject, ok := c.Get(contextKeySubject).(string)
	return subject, ok && subject != ""
}
