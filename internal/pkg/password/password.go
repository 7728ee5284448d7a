package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"math/big"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost is the default bcrypt cost
	DefaultCost = 12

	// MinLength is the minimum password length
	MinLength = 8

	// MaxLength is bcrypt's input limit in bytes
	MaxLength = 72

	// RuleMessage describes ValidatePassword's rule for field errors
	RuleMessage = "must be 8 to 72 bytes with upper and lower case letters and a digit"
)

// Cost is the bcrypt cost used by Hash. Tests lower it.
var Cost = DefaultCost

// dummyHash is compared against when the user does not exist so that
// unknown-email and wrong-password logins take the same time.
var (
	dummyOnce sync.Once
	dummyHash []byte
)

// Hash hashes a password using bcrypt
func Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), Cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify compares a password with a hash
func Verify(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// VerifyDummy burns the same CPU as Verify against a real hash
func VerifyDummy(password string) {
	dummyOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("chamahub-timing-equaliser"), Cost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// HashToken hashes a token using SHA256 (refresh tokens, verification tokens)
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// HashCode hashes a short code bound to a subject so equal codes of different users differ
func HashCode(subject, code string) string {
	return HashToken(subject + ":" + code)
}

// EqualHashes compares two hex hashes in constant time
func EqualHashes(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// GenerateToken returns a URL-safe random token carrying n bytes of entropy
func GenerateToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateOTP generates a cryptographically secure numeric code
func GenerateOTP(length int) (string, error) {
	var sb strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		sb.WriteByte(byte('0' + n.Int64()))
	}
	return sb.String(), nil
}

// ValidatePassword checks length and mixed case plus a digit
func ValidatePassword(password string) bool {
	if len(password) < MinLength || len(password) > MaxLength {
		return false
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}
