package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Password hashing schemes. SchemeSHA256 matches the digests already stored for
// existing accounts and therefore stays the default; switching a deployment to
// SchemeBcrypt invalidates every stored hash.
const (
	SchemeSHA256 = "sha256"
	SchemeBcrypt = "bcrypt"
)

// Hasher transforms plaintext passwords into storable digests and checks
// candidates against them.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// NewHasher returns the hasher for the named scheme, defaulting to sha256.
func NewHasher(scheme string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(scheme)) {
	case "", SchemeSHA256:
		return sha256Hasher{}, nil
	case SchemeBcrypt:
		return bcryptHasher{}, nil
	default:
		return nil, fmt.Errorf("crypto: unknown password scheme %q", scheme)
	}
}

// sha256Hasher reproduces the legacy unsalted digest format. It is a known
// hardening gap kept for compatibility with stored credentials; see DESIGN.md.
type sha256Hasher struct{}

func (sha256Hasher) Hash(plaintext string) (string, error) {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:]), nil
}

func (sha256Hasher) Verify(plaintext, digest string) bool {
	sum := sha256.Sum256([]byte(plaintext))
	candidate := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(digest)) == 1
}

type bcryptHasher struct{}

func (bcryptHasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (bcryptHasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// GenerateNumericCode returns a code of n decimal digits with each digit drawn
// from crypto/rand.
func GenerateNumericCode(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("crypto: code length must be positive, got %d", n)
	}

	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		digit, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("crypto: generate code: %w", err)
		}
		b.WriteByte(byte('0' + digit.Int64()))
	}
	return b.String(), nil
}

// GenerateResetToken returns a 64-character hex token built from two random
// UUIDs, matching the format of tokens already circulating in reset links.
func GenerateResetToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") +
		strings.ReplaceAll(uuid.NewString(), "-", "")
}
