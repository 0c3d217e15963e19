package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const (
	AlgHS256 = "HS256"
	AlgRS256 = "RS256"
)

// Signer hides the signing scheme from the token manager.
type Signer interface {
	Method() jwt.SigningMethod
	SigningKey() interface{}
	VerifyingKey() interface{}
	// KeyID is placed in the token header. Empty for shared-secret schemes.
	KeyID() string
	// PublicKeys returns the JWKS for asymmetric schemes; ok is false otherwise.
	PublicKeys() (set JWKSet, ok bool)
}

type SignerConfig struct {
	Algorithm     string
	Secret        string
	PrivateKeyPEM string
	PublicKeyPEM  string
}

// NewSigner selects the signing scheme from configuration.
func NewSigner(cfg SignerConfig) (Signer, error) {
	switch strings.ToUpper(strings.TrimSpace(cfg.Algorithm)) {
	case "", AlgHS256:
		return NewHMACSigner(cfg.Secret)
	case AlgRS256:
		priv, err := ParseRSAPrivateKey(cfg.PrivateKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("parse jwt private key: %w", err)
		}

		var pub *rsa.PublicKey
		if cfg.PublicKeyPEM != "" {
			pub, err = ParseRSAPublicKey(cfg.PublicKeyPEM)
			if err != nil {
				return nil, fmt.Errorf("parse jwt public key: %w", err)
			}
		}
		return NewRSASigner(priv, pub)
	default:
		return nil, fmt.Errorf("unsupported jwt algorithm %q", cfg.Algorithm)
	}
}

type HMACSigner struct {
	secret []byte
}

func NewHMACSigner(secret string) (*HMACSigner, error) {
	if secret == "" {
		return nil, errors.New("empty jwt secret")
	}
	return &HMACSigner{secret: []byte(secret)}, nil
}

func (s *HMACSigner) Method() jwt.SigningMethod  { return jwt.SigningMethodHS256 }
func (s *HMACSigner) SigningKey() interface{}    { return s.secret }
func (s *HMACSigner) VerifyingKey() interface{}  { return s.secret }
func (s *HMACSigner) KeyID() string              { return "" }
func (s *HMACSigner) PublicKeys() (JWKSet, bool) { return JWKSet{}, false }

type RSASigner struct {
	private *rsa.PrivateKey
	public  *rsa.PublicKey
	kid     string
	jwks    JWKSet
}

// NewRSASigner derives the public key from the private key when pub is nil.
func NewRSASigner(priv *rsa.PrivateKey, pub *rsa.PublicKey) (*RSASigner, error) {
	if priv == nil {
		return nil, errors.New("missing rsa private key")
	}
	if pub == nil {
		pub = &priv.PublicKey
	}
	if !pub.Equal(&priv.PublicKey) {
		return nil, errors.New("rsa public key does not match private key")
	}

	kid, err := KeyID(pub)
	if err != nil {
		return nil, err
	}
	jwks, err := NewJWKSet(pub)
	if err != nil {
		return nil, err
	}

	return &RSASigner{private: priv, public: pub, kid: kid, jwks: jwks}, nil
}

func (s *RSASigner) Method() jwt.SigningMethod  { return jwt.SigningMethodRS256 }
func (s *RSASigner) SigningKey() interface{}    { return s.private }
func (s *RSASigner) VerifyingKey() interface{}  { return s.public }
func (s *RSASigner) KeyID() string              { return s.kid }
func (s *RSASigner) PublicKeys() (JWKSet, bool) { return s.jwks, true }

func ParseRSAPrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("invalid_private_key")
	}
	switch block.Type {
	case "PRIVATE KEY":
		parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		key, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("invalid_private_key_type")
		}
		return key, nil
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	default:
		return nil, errors.New("invalid_private_key")
	}
}

func ParseRSAPublicKey(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, errors.New("invalid_public_key")
	}
	switch block.Type {
	case "PUBLIC KEY":
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		publicKey, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("invalid_public_key_type")
		}
		return publicKey, nil
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	default:
		return nil, errors.New("invalid_public_key")
	}
}
