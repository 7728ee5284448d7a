package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
	ErrWrongKind    = errors.New("token kind mismatch")
	ErrUnknownKey   = errors.New("unknown or retired signing key")
)

// Kind distinguishes access tokens from refresh tokens
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the payload shared by both token kinds
type Claims struct {
	UserID uint `json:"user_id"`
	Kind   Kind `json:"kind"`
	jwt.RegisteredClaims
}

// AccessClaims are validated claims of an access token
type AccessClaims struct {
	UserID    uint
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RefreshClaims are validated claims of a refresh token
type RefreshClaims struct {
	UserID    uint
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// KeyRing signs with the active key and verifies with any non-retired key
type KeyRing struct {
	issuer    string
	activeKID string
	keys      map[string][]byte
	retired   map[string]bool
	now       func() time.Time
}

// NewKeyRing creates a key ring. The active key must exist and must not be retired.
func NewKeyRing(issuer, activeKID string, keys map[string]string, retired []string) (*KeyRing, error) {
	kr := &KeyRing{
		issuer:    issuer,
		activeKID: activeKID,
		keys:      make(map[string][]byte, len(keys)),
		retired:   make(map[string]bool, len(retired)),
		now:       time.Now,
	}
	for kid, secret := range keys {
		if len(secret) < 32 {
			return nil, fmt.Errorf("jwt key %q must be at least 32 bytes", kid)
		}
		kr.keys[kid] = []byte(secret)
	}
	for _, kid := range retired {
		kr.retired[kid] = true
	}
	if _, ok := kr.keys[activeKID]; !ok {
		return nil, fmt.Errorf("active jwt key %q not configured", activeKID)
	}
	if kr.retired[activeKID] {
		return nil, fmt.Errorf("active jwt key %q is retired", activeKID)
	}
	return kr, nil
}

// SetClock overrides the time source (tests)
func (k *KeyRing) SetClock(now func() time.Time) {
	k.now = now
}

// ActiveKID returns the key id used for new tokens
func (k *KeyRing) ActiveKID() string {
	return k.activeKID
}

// GenerateAccessToken issues an access token for userID
func (k *KeyRing) GenerateAccessToken(userID uint, ttl time.Duration) (string, time.Time, error) {
	now := k.now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		UserID: userID,
		Kind:   KindAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    k.issuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        uuid.NewString(),
		},
	}
	signed, err := k.sign(claims)
	return signed, expiresAt, err
}

// GenerateRefreshToken issues a refresh token and returns its unique id
func (k *KeyRing) GenerateRefreshToken(userID uint, ttl time.Duration) (string, string, time.Time, error) {
	now := k.now()
	expiresAt := now.Add(ttl)
	tokenID := uuid.NewString()
	claims := Claims{
		UserID: userID,
		Kind:   KindRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    k.issuer,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        tokenID,
		},
	}
	signed, err := k.sign(claims)
	return signed, tokenID, expiresAt, err
}

// ValidateAccessToken validates an access token and returns its claims
func (k *KeyRing) ValidateAccessToken(tokenString string) (*AccessClaims, error) {
	claims, err := k.parse(tokenString, KindAccess)
	if err != nil {
		return nil, err
	}
	return &AccessClaims{
		UserID:    claims.UserID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// ValidateRefreshToken validates a refresh token and returns its claims
func (k *KeyRing) ValidateRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims, err := k.parse(tokenString, KindRefresh)
	if err != nil {
		return nil, err
	}
	return &RefreshClaims{
		UserID:    claims.UserID,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (k *KeyRing) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = k.activeKID
	return token.SignedString(k.keys[k.activeKID])
}

func (k *KeyRing) parse(tokenString string, want Kind) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, k.keyFunc,
		jwt.WithIssuer(k.issuer),
		jwt.WithTimeFunc(k.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		if errors.Is(err, ErrUnknownKey) {
			return nil, ErrUnknownKey
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Kind != want {
		return nil, ErrWrongKind
	}
	return claims, nil
}

func (k *KeyRing) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ErrTokenInvalid
	}
	kid, _ := token.Header["kid"].(string)
	if kid == "" || k.retired[kid] {
		return nil, ErrUnknownKey
	}
	secret, ok := k.keys[kid]
	if !ok {
		return nil, ErrUnknownKey
	}
	return secret, nil
}
