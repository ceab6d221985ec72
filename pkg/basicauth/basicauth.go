package basicauth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"golang.org/x/crypto/scrypt"
)

const (
	saltLength = 32
	keyLength  = 32
)

var (
	// ErrInvalidCredentials is returned if the configured credentials can not be used.
	ErrInvalidCredentials = errors.New("invalid basic auth credentials")
)

// SaltGenerator generates a crypto-secure random salt.
func SaltGenerator(length int) ([]byte, error) {
	salt := make([]byte, length)

	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	return salt, nil
}

// DerivePasswordKey calculates the key based on password and salt.
func DerivePasswordKey(password []byte, salt []byte) ([]byte, error) {
	return scrypt.Key(password, salt, 1<<15, 8, 1, keyLength)
}

// HashPassword derives the key of the password with a fresh salt. Both are returned hex encoded,
// in the form expected by NewBasicAuth.
func HashPassword(password string) (passwordHashHex string, passwordSaltHex string, err error) {
	salt, err := SaltGenerator(saltLength)
	if err != nil {
		return "", "", err
	}

	key, err := DerivePasswordKey([]byte(password), salt)
	if err != nil {
		return "", "", err
	}

	return hex.EncodeToString(key), hex.EncodeToString(salt), nil
}

// BasicAuth protects routes with a single user whose password is stored as salted scrypt key.
type BasicAuth struct {
	username     string
	passwordHash []byte
	passwordSalt []byte
}

func NewBasicAuth(username string, passwordHashHex string, passwordSaltHex string) (*BasicAuth, error) {
	if len(username) == 0 {
		return nil, errors.WithMessage(ErrInvalidCredentials, "username must not be empty")
	}

	passwordHash, err := hex.DecodeString(passwordHashHex)
	if err != nil || len(passwordHash) != keyLength {
		return nil, errors.WithMessagef(ErrInvalidCredentials, "password hash must be %d hex encoded bytes", keyLength)
	}

	passwordSalt, err := hex.DecodeString(passwordSaltHex)
	if err != nil || len(passwordSalt) != saltLength {
		return nil, errors.WithMessagef(ErrInvalidCredentials, "password salt must be %d hex encoded bytes", saltLength)
	}

	return &BasicAuth{
		username:     username,
		passwordHash: passwordHash,
		passwordSalt: passwordSalt,
	}, nil
}

func (b *BasicAuth) VerifyUsernameAndPassword(username string, password string) bool {
	if subtle.ConstantTimeCompare([]byte(username), []byte(b.username)) != 1 {
		return false
	}

	// a key that can't be derived never matches
	key, err := DerivePasswordKey([]byte(password), b.passwordSalt)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(key, b.passwordHash) == 1
}

// Middleware rejects requests without valid credentials.
func (b *BasicAuth) Middleware(realm string) echo.MiddlewareFunc {
	return middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Realm: realm,
		Validator: func(username string, password string, _ echo.Context) (bool, error) {
			return b.VerifyUsernameAndPassword(username, password), nil
		},
	})
}
