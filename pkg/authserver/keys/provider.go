// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package keys provides the signing keys of the authorization engine and
// publishes their public halves as a JSON Web Key Set.
package keys

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	josev3 "github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v4"

	"github.com/tryextra/extra-oidc/pkg/logger"
)

// DefaultAlgorithm is the algorithm of generated keys.
const DefaultAlgorithm = "ES256"

// SigningKeyData is a private signing key with its metadata.
type SigningKeyData struct {
	// KeyID is the RFC 7638 thumbprint of the key.
	KeyID     string
	Algorithm string
	Key       crypto.Signer
	CreatedAt time.Time
}

// FositeJWK returns the key in the go-jose v3 form fosite signs with. Wrapping
// the key in a JWK puts its kid in every JWT header.
func (k *SigningKeyData) FositeJWK() *josev3.JSONWebKey {
	return &josev3.JSONWebKey{
		Key:       k.Key,
		KeyID:     k.KeyID,
		Algorithm: k.Algorithm,
		Use:       "sig",
	}
}

func (k *SigningKeyData) copy() *SigningKeyData {
	c := *k
	return &c
}

// KeyProvider provides signing keys.
type KeyProvider interface {
	// SigningKey returns the key new tokens are signed with.
	SigningKey(ctx context.Context) (*SigningKeyData, error)

	// PublicKeys returns every key tokens may still be verified with.
	PublicKeys(ctx context.Context) ([]jose.JSONWebKey, error)
}

// Config selects a KeyProvider.
type Config struct {
	// SigningKeyFile is a PEM private key. A key is generated when empty.
	SigningKeyFile string

	// FallbackKeyFiles are published for verification but never sign.
	FallbackKeyFiles []string
}

// NewProviderFromConfig returns a FileProvider when a key file is configured
// and a GeneratingProvider otherwise.
func NewProviderFromConfig(cfg Config) (KeyProvider, error) {
	if cfg.SigningKeyFile != "" {
		return NewFileProvider(cfg)
	}
	return NewGeneratingProvider(DefaultAlgorithm), nil
}

// FileProvider serves keys loaded from PEM files at construction.
type FileProvider struct {
	signingKey *SigningKeyData
	allKeys    []*SigningKeyData
}

// NewFileProvider loads the signing key and fallback keys of cfg.
func NewFileProvider(cfg Config) (*FileProvider, error) {
	if cfg.SigningKeyFile == "" {
		return nil, fmt.Errorf("signing key file is required")
	}

	signingKey, err := loadKeyFromFile(cfg.SigningKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	allKeys := []*SigningKeyData{signingKey}
	for _, path := range cfg.FallbackKeyFiles {
		key, err := loadKeyFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load fallback key %s: %w", path, err)
		}
		allKeys = append(allKeys, key)
	}

	logger.Debugw("signing keys loaded", "key_id", signingKey.KeyID, "fallback_keys", len(cfg.FallbackKeyFiles))

	return &FileProvider{signingKey: signingKey, allKeys: allKeys}, nil
}

func loadKeyFromFile(path string) (*SigningKeyData, error) {
	signer, err := LoadSigningKey(path)
	if err != nil {
		return nil, err
	}
	return newSigningKeyData(signer)
}

func newSigningKeyData(signer crypto.Signer) (*SigningKeyData, error) {
	alg, err := DeriveAlgorithm(signer)
	if err != nil {
		return nil, err
	}
	kid, err := DeriveKeyID(signer)
	if err != nil {
		return nil, err
	}
	return &SigningKeyData{
		KeyID:     kid,
		Algorithm: alg,
		Key:       signer,
		CreatedAt: time.Now(),
	}, nil
}

// SigningKey returns a copy of the primary key.
func (p *FileProvider) SigningKey(_ context.Context) (*SigningKeyData, error) {
	return p.signingKey.copy(), nil
}

// PublicKeys returns the public halves of the signing and fallback keys.
func (p *FileProvider) PublicKeys(_ context.Context) ([]jose.JSONWebKey, error) {
	return publicJWKs(p.allKeys), nil
}

// GeneratingProvider generates an ephemeral key on first use. Tokens it signed
// do not verify after a restart.
type GeneratingProvider struct {
	algorithm string
	mu        sync.Mutex
	key       *SigningKeyData
}

// NewGeneratingProvider creates a provider generating algorithm keys.
func NewGeneratingProvider(algorithm string) *GeneratingProvider {
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	return &GeneratingProvider{algorithm: algorithm}
}

// SigningKey returns the generated key, generating it once.
func (p *GeneratingProvider) SigningKey(_ context.Context) (*SigningKeyData, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.key == nil {
		signer, err := generatePrivateKey(p.algorithm)
		if err != nil {
			return nil, fmt.Errorf("failed to generate signing key: %w", err)
		}
		key, err := newSigningKeyData(signer)
		if err != nil {
			return nil, err
		}
		logger.Warnw("generated ephemeral signing key, tokens will be invalid after restart",
			"algorithm", key.Algorithm,
			"key_id", key.KeyID,
		)
		p.key = key
	}
	return p.key.copy(), nil
}

// PublicKeys returns the public half of the generated key.
func (p *GeneratingProvider) PublicKeys(ctx context.Context) ([]jose.JSONWebKey, error) {
	key, err := p.SigningKey(ctx)
	if err != nil {
		return nil, err
	}
	return publicJWKs([]*SigningKeyData{key}), nil
}

func generatePrivateKey(algorithm string) (crypto.Signer, error) {
	switch algorithm {
	case "ES256":
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case "ES384":
		return ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case "ES512":
		return ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	default:
		return nil, fmt.Errorf("unsupported algorithm for key generation: %s", algorithm)
	}
}

func publicJWKs(keys []*SigningKeyData) []jose.JSONWebKey {
	out := make([]jose.JSONWebKey, 0, len(keys))
	for _, k := range keys {
		out = append(out, jose.JSONWebKey{
			Key:       k.Key.Public(),
			KeyID:     k.KeyID,
			Algorithm: k.Algorithm,
			Use:       "sig",
		})
	}
	return out
}

// JWKS returns the key set published at the jwks_uri.
func JWKS(ctx context.Context, p KeyProvider) (*jose.JSONWebKeySet, error) {
	pub, err := p.PublicKeys(ctx)
	if err != nil {
		return nil, err
	}
	return &jose.JSONWebKeySet{Keys: pub}, nil
}

// Compile-time interface checks.
var (
	_ KeyProvider = (*FileProvider)(nil)
	_ KeyProvider = (*GeneratingProvider)(nil)
)
