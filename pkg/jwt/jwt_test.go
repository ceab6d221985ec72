package jwt_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/gohornet/fundgov/pkg/jwt"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestIssueAndVerify(t *testing.T) {
	auth, err := jwt.NewAuth("fundgov", time.Hour, secret)
	require.NoError(t, err)

	token, err := auth.IssueJWT("alice")
	require.NoError(t, err)

	subject, ok := auth.VerifyJWT(token)
	require.True(t, ok)
	require.Equal(t, "alice", subject)

	other, err := jwt.NewAuth("other", time.Hour, secret)
	require.NoError(t, err)
	_, ok = other.VerifyJWT(token)
	require.False(t, ok, "issuer must match")

	forged, err := jwt.NewAuth("fundgov", time.Hour, "fedcba9876543210fedcba9876543210")
	require.NoError(t, err)
	_, ok = forged.VerifyJWT(token)
	require.False(t, ok, "signature must match")

	_, err = auth.IssueJWT("")
	require.Error(t, err)
}

func TestExpiredToken(t *testing.T) {
	auth, err := jwt.NewAuth("fundgov", time.Hour, secret)
	require.NoError(t, err)

	claims := &jwt.AuthClaims{StandardClaims: gojwt.StandardClaims{
		Subject:   "alice",
		Issuer:    "fundgov",
		ExpiresAt: time.Now().Add(-time.Minute).Unix(),
	}}
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)

	_, ok := auth.VerifyJWT(token)
	require.False(t, ok)
}

func TestNewAuthValidation(t *testing.T) {
	_, err := jwt.NewAuth("", time.Hour, secret)
	require.Error(t, err)
	_, err = jwt.NewAuth("fundgov", time.Hour, "short")
	require.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	auth, err := jwt.NewAuth("fundgov", 0, secret)
	require.NoError(t, err)

	e := echo.New()
	skipper := func(c echo.Context) bool { return c.Request().Method == http.MethodGet }
	e.Use(auth.Middleware(skipper, func(c echo.Context, claims *jwt.AuthClaims) bool {
		return !claims.VerifySubject("mallory")
	}))

	handler := func(c echo.Context) error {
		subject, ok := jwt.SubjectFromContext(c)
		if !ok {
			return c.String(http.StatusOK, "anonymous")
		}
		return c.String(http.StatusOK, subject)
	}
	e.GET("/", handler)
	e.POST("/", handler)

	serve := func(method string, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/", nil)
		if token != "" {
			req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := serve(http.MethodGet, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "anonymous", rec.Body.String())

	require.Equal(t, http.StatusUnauthorized, serve(http.MethodPost, "").Code)
	require.Equal(t, http.StatusUnauthorized, serve(http.MethodPost, "garbage").Code)

	token, err := auth.IssueJWT("alice")
	require.NoError(t, err)
	rec = serve(http.MethodPost, token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "alice", rec.Body.String())

	token, err = auth.IssueJWT("mallory")
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, serve(http.MethodPost, token).Code)
}
