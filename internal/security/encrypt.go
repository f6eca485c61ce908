package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"github.com/fernet/fernet-go"
)

var ErrDecrypt = errors.New("failed to decrypt message body")

// Encryptor seals message bodies at rest with AES-256-GCM. Bodies written
// with older fernet keys stay readable through the legacy key ring.
type Encryptor struct {
	aead       cipher.AEAD
	fernetKeys []*fernet.Key
}

// NewEncryptor derives the AES key from secret with SHA-256, so secrets of
// any length work. legacyKeys are fernet keys; unparsable entries are skipped.
func NewEncryptor(secret []byte, legacyKeys []string) (*Encryptor, error) {
	if len(secret) == 0 {
		return nil, errors.New("encryption key must not be empty")
	}
	sum := sha256.Sum256(secret)
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	var ring []*fernet.Key
	for _, raw := range append([]string{string(secret)}, legacyKeys...) {
		if k := parseFernetKey(raw); k != nil {
			ring = append(ring, k)
		}
	}
	return &Encryptor{aead: aead, fernetKeys: ring}, nil
}

func parseFernetKey(raw string) *fernet.Key {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	k, err := fernet.DecodeKey(raw)
	if err != nil {
		return nil
	}
	return k
}

func (e *Encryptor) Encrypt(plain string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (e *Encryptor) Decrypt(enc string) (string, error) {
	if raw, err := base64.StdEncoding.DecodeString(enc); err == nil && len(raw) >= e.aead.NonceSize() {
		n := e.aead.NonceSize()
		if plain, err := e.aead.Open(nil, raw[:n], raw[n:], nil); err == nil {
			return string(plain), nil
		}
	}
	if len(e.fernetKeys) > 0 {
		// ttl 0 disables the fernet timestamp check
		if plain := fernet.VerifyAndDecrypt([]byte(enc), 0, e.fernetKeys); plain != nil {
			return string(plain), nil
		}
	}
	return "", ErrDecrypt
}
