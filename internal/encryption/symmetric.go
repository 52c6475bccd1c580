package encryption

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const keyInfo = "chat_engine payload encryption v1"

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// SymmetricDriver шифрует payload на сервере XChaCha20-Poly1305 с ключом приложения.
// Сервер может расшифровать любое сообщение: это защита хранилища, не E2E.
type SymmetricDriver struct {
	key []byte
}

// NewSymmetricDriver выводит 256-битный ключ из секрета приложения через HKDF-SHA256.
func NewSymmetricDriver(appKey string) (*SymmetricDriver, error) {
	if appKey == "" {
		return nil, errors.New("encryption key must be set")
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(appKey), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return &SymmetricDriver{key: key}, nil
}

func (d *SymmetricDriver) Encrypt(payload map[string]interface{}, _ Context) (string, error) {
	plaintext, err := encodeJSON(payload)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(d.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (d *SymmetricDriver) Decrypt(ciphertext string, _ Context) (map[string]interface{}, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	aead, err := chacha20poly1305.NewX(d.key)
	if err != nil {
		return nil, err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("open ciphertext: %w", err)
	}
	return decodeJSON(plaintext)
}

func (d *SymmetricDriver) Name() string {
	return DriverSymmetric
}

func (d *SymmetricDriver) CanDecrypt(driverName string) bool {
	return driverName == DriverSymmetric
}
