package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrInvalidKey      = errors.New("vault: invalid encryption key")
	ErrInvalidPayload  = errors.New("vault: invalid encrypted payload")
	ErrDecryption      = errors.New("vault: decryption failed")
	ErrUnknownProvider = errors.New("vault: unknown provider")
)

// Provider encrypts small secrets. The associated data must match between
// Encrypt and Decrypt.
type Provider interface {
	Encrypt(plaintext, associatedData []byte) ([]byte, error)
	Decrypt(sealed, associatedData []byte) ([]byte, error)
}

type Config struct {
	Provider string
	AESKey   string
}

func NewFactory(cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "aes", "":
		return newAESVault(cfg.AESKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

const (
	envelopeVersion = 2
	keyInfo         = "chapchap/integration-credentials/v2"
)

// AESVault seals with AES-256-GCM under a key derived from the configured
// secret with HKDF-SHA256.
type AESVault struct {
	aead cipher.AEAD
}

func newAESVault(secret string) (*AESVault, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrInvalidKey
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESVault{aead: aead}, nil
}

type envelope struct {
	Version    int    `json:"v"`
	Nonce      string `json:"n"`
	Ciphertext string `json:"c"`
}

func (v *AESVault) Encrypt(plaintext, associatedData []byte) ([]byte, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		Version:    envelopeVersion,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(v.aead.Seal(nil, nonce, plaintext, associatedData)),
	})
}

func (v *AESVault) Decrypt(sealed, associatedData []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(sealed, &env); err != nil || env.Version != envelopeVersion {
		return nil, ErrInvalidPayload
	}
	nonce, err := base64.RawStdEncoding.DecodeString(env.Nonce)
	if err != nil || len(nonce) != v.aead.NonceSize() {
		return nil, ErrInvalidPayload
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, ErrInvalidPayload
	}

	plaintext, err := v.aead.Open(nil, nonce, ciphertext, associatedData)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

// SealCredentials encrypts a provider credential bag bound to its
// integration, so a bag copied onto another row does not open.
func SealCredentials(p Provider, integrationID uuid.UUID, creds map[string]string) ([]byte, error) {
	if p == nil {
		return nil, ErrInvalidKey
	}
	plain, err := json.Marshal(creds)
	if err != nil {
		return nil, err
	}
	return p.Encrypt(plain, integrationID[:])
}

// OpenCredentials decrypts a bag produced by SealCredentials.
func OpenCredentials(p Provider, integrationID uuid.UUID, sealed []byte) (map[string]string, error) {
	if p == nil {
		return nil, ErrInvalidKey
	}
	if len(sealed) == 0 {
		return nil, ErrInvalidPayload
	}
	plain, err := p.Decrypt(sealed, integrationID[:])
	if err != nil {
		return nil, err
	}
	var creds map[string]string
	if err := json.Unmarshal(plain, &creds); err != nil {
		return nil, ErrInvalidPayload
	}
	return creds, nil
}
