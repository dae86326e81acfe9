// Package auth issues and verifies the signed session tokens consumed
// by the HTTP surface. The core never sees token bytes, only the
// verified identity.
//
// Token format: header.claims.signature, base64url encoded, signed with
// Ed25519. No external claims are trusted beyond what this package
// signed itself.
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 24 * time.Hour

// clockSkew allows for clock drift between client and server.
const clockSkew = 30 * time.Second

// Verification errors.
var (
	ErrMalformedToken = errors.New("malformed token")
	ErrBadSignature   = errors.New("invalid token signature")
	ErrTokenExpired   = errors.New("token expired")
)

// Identity is the verified result of token verification.
type Identity struct {
	UserID  string `json:"uid"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"admin"`
}

type claims struct {
	Identity
	IssuedAt  int64 `json:"iat"`
	ExpiresAt int64 `json:"exp"`
}

type header struct {
	Algorithm string `json:"alg"`
	Type      string `json:"typ"`
}

// Signer issues and verifies tokens with one Ed25519 key pair.
type Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewSigner creates a signer with a freshly generated key. Tokens do
// not survive process restarts; use LoadSigner for a persistent key.
func NewSigner() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return &Signer{priv: priv, pub: pub}, nil
}

// LoadSigner reads an Ed25519 seed from path, creating one if missing.
func LoadSigner(path string) (*Signer, error) {
	seed, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		seed = make([]byte, ed25519.SeedSize)
		if _, err := rand.Read(seed); err != nil {
			return nil, fmt.Errorf("generate seed: %w", err)
		}
		if err := os.WriteFile(path, seed, 0600); err != nil {
			return nil, fmt.Errorf("write key file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("key file %s: want %d-byte seed, got %d", path, ed25519.SeedSize, len(seed))
	}

	priv := ed25519.NewKeyFromSeed(seed)
	return &Signer{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
}

// Issue signs a token for the given identity.
func (s *Signer) Issue(id Identity) (string, error) {
	return s.issueAt(id, time.Now())
}

func (s *Signer) issueAt(id Identity, now time.Time) (string, error) {
	h, err := json.Marshal(header{Algorithm: "EdDSA", Type: "JWT"})
	if err != nil {
		return "", err
	}
	c, err := json.Marshal(claims{
		Identity:  id,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(TokenTTL).Unix(),
	})
	if err != nil {
		return "", err
	}

	enc := base64.RawURLEncoding
	signingInput := enc.EncodeToString(h) + "." + enc.EncodeToString(c)
	sig := ed25519.Sign(s.priv, []byte(signingInput))
	return signingInput + "." + enc.EncodeToString(sig), nil
}

// Verify checks the signature and expiry and returns the identity the
// token carries.
func (s *Signer) Verify(token string) (Identity, error) {
	return s.verifyAt(token, time.Now())
}

func (s *Signer) verifyAt(token string, now time.Time) (Identity, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Identity{}, ErrMalformedToken
	}

	enc := base64.RawURLEncoding
	sig, err := enc.DecodeString(parts[2])
	if err != nil {
		return Identity{}, ErrMalformedToken
	}
	signingInput := parts[0] + "." + parts[1]
	if !ed25519.Verify(s.pub, []byte(signingInput), sig) {
		return Identity{}, ErrBadSignature
	}

	rawClaims, err := enc.DecodeString(parts[1])
	if err != nil {
		return Identity{}, ErrMalformedToken
	}
	var c claims
	if err := json.Unmarshal(rawClaims, &c); err != nil {
		return Identity{}, ErrMalformedToken
	}

	if now.After(time.Unix(c.ExpiresAt, 0).Add(clockSkew)) {
		return Identity{}, ErrTokenExpired
	}
	return c.Identity, nil
}
