package carrier

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	applogistics "github.com/marketplace/backend/internal/application/logistics"
	"github.com/marketplace/backend/internal/domain/shared"
)

const (
	saltSize   = 16
	ivSize     = aes.BlockSize
	keySize    = 32
	iterations = 10000
)

// AESWebhookDecrypter opens carrier webhook envelopes. The envelope arrives
// base64 encoded; the decoded bytes are a 16-byte salt, a 16-byte IV, then
// the AES-256-CBC ciphertext. The key is derived from the shared webhook
// secret with PBKDF2-HMAC-SHA1.
type AESWebhookDecrypter struct {
	secret []byte
}

// NewAESWebhookDecrypter creates a decrypter for the given shared secret
func NewAESWebhookDecrypter(secret string) (*AESWebhookDecrypter, error) {
	if secret == "" {
		return nil, shared.NewDomainError("INVALID_SECRET", "Webhook secret cannot be empty")
	}
	return &AESWebhookDecrypter{secret: []byte(secret)}, nil
}

// Decrypt opens a base64 envelope and returns the plaintext payload
func (d *AESWebhookDecrypter) Decrypt(envelope []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(envelope)))
	if err != nil {
		return nil, fmt.Errorf("webhook envelope is not valid base64: %w", err)
	}
	if len(raw) < saltSize+ivSize+aes.BlockSize {
		return nil, fmt.Errorf("webhook envelope too short: %d bytes", len(raw))
	}
	ciphertext := raw[saltSize+ivSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("webhook ciphertext is not block aligned")
	}

	salt := raw[:saltSize]
	iv := raw[saltSize : saltSize+ivSize]
	key := pbkdf2.Key(d.secret, salt, iterations, keySize, sha1.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	return stripPKCS7(plaintext)
}

// Encrypt seals a payload into a base64 envelope. The carrier side does
// this; it is here so the round trip is verifiable.
func (d *AESWebhookDecrypter) Encrypt(payload []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	key := pbkdf2.Key(d.secret, salt, iterations, keySize, sha1.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}

	padded := padPKCS7(payload)
	raw := make([]byte, 0, saltSize+ivSize+len(padded))
	raw = append(raw, salt...)
	raw = append(raw, iv...)

	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	raw = append(raw, ciphertext...)

	envelope := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(envelope, raw)
	return envelope, nil
}

// stripPKCS7 validates and removes PKCS7 padding. The pad length must be
// in [1,16] and every pad byte must carry the pad length.
func stripPKCS7(plaintext []byte) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("empty plaintext")
	}
	pad := int(plaintext[len(plaintext)-1])
	if pad < 1 || pad > aes.BlockSize || pad > len(plaintext) {
		return nil, fmt.Errorf("invalid padding length %d", pad)
	}
	for _, b := range plaintext[len(plaintext)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("malformed padding")
		}
	}
	return plaintext[:len(plaintext)-pad], nil
}

// padPKCS7 appends PKCS7 padding up to the block size
func padPKCS7(payload []byte) []byte {
	pad := aes.BlockSize - len(payload)%aes.BlockSize
	padded := make([]byte, len(payload), len(payload)+pad)
	copy(padded, payload)
	for i := 0; i < pad; i++ {
		padded = append(padded, byte(pad))
	}
	return padded
}

// Ensure AESWebhookDecrypter implements WebhookDecrypter
var _ applogistics.WebhookDecrypter = (*AESWebhookDecrypter)(nil)
