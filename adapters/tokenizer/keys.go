package tokenizer

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"

	"github.com/warden-auth/warden/core"
)

// SigningKeys holds one RSA key pair per token kind. A token signed with
// the authorization key never verifies as a refresh token, and vice versa.
type SigningKeys struct {
	pairs map[core.TokenKind]keyPair
}

type keyPair struct {
	key *rsa.PrivateKey
	kid string
}

// GenerateSigningKeys creates ephemeral key pairs for both token kinds.
// Meant for development and tests; restarts invalidate all tokens.
func GenerateSigningKeys() (*SigningKeys, error) {
	pairs := make(map[core.TokenKind]keyPair, 2)
	for _, kind := range []core.TokenKind{core.AuthorizationToken, core.RefreshToken} {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, fmt.Errorf("failed to generate %s key: %w", kind, err)
		}
		pairs[kind] = keyPair{key: key, kid: keyID(key)}
	}
	return &SigningKeys{pairs: pairs}, nil
}

// ParseSigningKeys loads PEM-encoded RSA private keys, one per token kind.
func ParseSigningKeys(authorizationPEM, refreshPEM []byte) (*SigningKeys, error) {
	authorization, err := parsePrivateKey(authorizationPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse authorization key: %w", err)
	}
	refresh, err := parsePrivateKey(refreshPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse refresh key: %w", err)
	}
	return &SigningKeys{pairs: map[core.TokenKind]keyPair{
		core.AuthorizationToken: {key: authorization, kid: keyID(authorization)},
		core.RefreshToken:       {key: refresh, kid: keyID(refresh)},
	}}, nil
}

func (s *SigningKeys) pair(kind core.TokenKind) (keyPair, error) {
	p, ok := s.pairs[kind]
	if !ok {
		return keyPair{}, fmt.Errorf("no signing key for token kind %q", kind)
	}
	return p, nil
}

func parsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA private key")
	}
	return key, nil
}

// keyID derives a stable identifier from the public key, used as the
// JWT kid header and the JWKS lookup key.
func keyID(key *rsa.PrivateKey) string {
	sum := sha256.Sum256(key.PublicKey.N.Bytes())
	return hex.EncodeToString(sum[:8])
}
