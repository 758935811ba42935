package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/result-system/apiserver/types"
)

// ErrInvalidToken is the single outcome of every verification failure:
// bad signature, expiry, wrong algorithm or malformed claims.
var ErrInvalidToken = errors.New("invalid token")

var requiredClaims = []string{"id", "username", "firstName", "lastName", "role", "avatar"}

type userClaims struct {
	types.AuthorizedUser
	jwt.RegisteredClaims
}

// Issue signs an HS256 token embedding the user's claim set. ttl accepts
// anything ParseExpiry does.
func Issue(user types.AuthorizedUser, secret, ttl string) (string, error) {
	d, err := ParseExpiry(ttl)
	if err != nil {
		return "", err
	}
	return issue(user, []byte(secret), d, time.Now())
}

func issue(user types.AuthorizedUser, secret []byte, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("signing secret is empty")
	}
	claims := userClaims{
		AuthorizedUser: user,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Verify checks signature and expiry and projects the payload onto an
// AuthorizedUser. All six claim keys must be present.
func Verify(tokenString, secret string) (types.AuthorizedUser, error) {
	return verify(tokenString, []byte(secret))
}

func verify(tokenString string, secret []byte) (types.AuthorizedUser, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	}, jwt.WithExpirationRequired(), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return types.AuthorizedUser{}, ErrInvalidToken
	}

	user, err := projectClaims(claims)
	if err != nil {
		return types.AuthorizedUser{}, ErrInvalidToken
	}
	return user, nil
}

func projectClaims(claims jwt.MapClaims) (types.AuthorizedUser, error) {
	subset := make(map[string]any, len(requiredClaims))
	for _, key := range requiredClaims {
		value, ok := claims[key]
		if !ok {
			return types.AuthorizedUser{}, fmt.Errorf("missing claim %q", key)
		}
		if key != "avatar" {
			s, ok := value.(string)
			if !ok || s == "" {
				return types.AuthorizedUser{}, fmt.Errorf("invalid claim %q", key)
			}
		}
		subset[key] = value
	}

	raw, err := json.Marshal(subset)
	if err != nil {
		return types.AuthorizedUser{}, err
	}
	var user types.AuthorizedUser
	if err := json.Unmarshal(raw, &user); err != nil {
		return types.AuthorizedUser{}, err
	}
	if !user.Role.Valid() {
		return types.AuthorizedUser{}, fmt.Errorf("unknown role %q", user.Role)
	}
	return user, nil
}

// Codec issues and verifies the access/refresh token pair, each with its own
// secret and lifetime.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	refreshTTLSec int64
	now           func() time.Time
}

// CodecConfig holds raw token settings as read from the environment.
type CodecConfig struct {
	AccessSecret   string
	RefreshSecret  string
	AccessExpires  string
	RefreshExpires string
}

// NewCodec validates the secrets and parses both expirations.
func NewCodec(cfg CodecConfig) (*Codec, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("access and refresh token secrets are required")
	}
	accessTTL, err := ParseExpiry(cfg.AccessExpires)
	if err != nil {
		return nil, fmt.Errorf("access token expiry: %w", err)
	}
	refreshTTL, err := ParseExpiry(cfg.RefreshExpires)
	if err != nil {
		return nil, fmt.Errorf("refresh token expiry: %w", err)
	}
	refreshSec, err := ExpirySeconds(cfg.RefreshExpires)
	if err != nil {
		return nil, fmt.Errorf("refresh token expiry: %w", err)
	}

	return &Codec{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		refreshTTLSec: refreshSec,
		now:           time.Now,
	}, nil
}

func (c *Codec) IssueAccess(user types.AuthorizedUser) (string, error) {
	return issue(user, c.accessSecret, c.accessTTL, c.now())
}

func (c *Codec) IssueRefresh(user types.AuthorizedUser) (string, error) {
	return issue(user, c.refreshSecret, c.refreshTTL, c.now())
}

func (c *Codec) VerifyAccess(token string) (types.AuthorizedUser, error) {
	return verify(token, c.accessSecret)
}

func (c *Codec) VerifyRefresh(token string) (types.AuthorizedUser, error) {
	return verify(token, c.refreshSecret)
}

// RefreshTTLSeconds is the refresh lifetime floored to whole seconds.
func (c *Codec) RefreshTTLSeconds() int64 {
	return c.refreshTTLSec
}
