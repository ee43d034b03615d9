package securecrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"model_nexus/internal/shared/buf"
)

// CBCCipher encrypts and decrypts fragments laid out as IV || AES-CBC(PKCS7(plaintext)).
type CBCCipher struct {
	block cipher.Block
}

// NewCBCCipher creates an AES-CBC cipher for the given key.
func NewCBCCipher(key []byte) (*CBCCipher, error) {
	if _, err := ParseKeySize(len(key)); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES block cipher: %w", err)
	}
	return &CBCCipher{block: block}, nil
}

// Encrypt pads the plaintext and returns a random IV followed by the ciphertext.
func (c *CBCCipher) Encrypt(plaintext []byte) ([]byte, error) {
	padded := PadPKCS7(plaintext, BlockSize)
	out := make([]byte, BlockSize+len(padded))
	iv := out[:BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out[BlockSize:], padded)
	return out, nil
}

// DecryptTo decrypts an encrypted fragment and appends the unpadded plaintext
// to dst. It returns the number of bytes written. The intermediate plaintext
// lives in a scratch buffer that is wiped before DecryptTo returns.
func (c *CBCCipher) DecryptTo(dst *buf.Buffer, fragment []byte) (int, error) {
	if len(fragment) < BlockSize {
		return 0, fmt.Errorf("%w: %d bytes is shorter than the iv", ErrMalformedFragment, len(fragment))
	}
	iv, body := fragment[:BlockSize], fragment[BlockSize:]
	if len(body)%BlockSize != 0 {
		return 0, fmt.Errorf("%w: body of %d bytes is not a whole number of blocks", ErrMalformedFragment, len(body))
	}

	scratch, err := buf.New(int64(len(body)))
	if err != nil {
		return 0, err
	}
	defer scratch.Release()

	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(scratch.Extend(len(body)), body)

	plaintext, err := UnpadPKCS7(scratch.Bytes())
	if err != nil {
		return 0, err
	}
	n, err := dst.Write(plaintext)
	if err != nil {
		return n, fmt.Errorf("%w: output has room for %d of %d bytes", buf.ErrAllocation, n, len(plaintext))
	}
	return n, nil
}

// Decrypt is DecryptTo into a fresh slice.
func (c *CBCCipher) Decrypt(fragment []byte) ([]byte, error) {
	out, err := buf.New(int64(len(fragment)))
	if err != nil {
		return nil, err
	}
	if _, err := c.DecryptTo(out, fragment); err != nil {
		out.Release()
		return nil, err
	}
	return out.Bytes(), nil
}

// DecryptFragment checks the fragment shape before the key, so a short
// fragment is reported as malformed whatever key it comes with.
func DecryptFragment(dst *buf.Buffer, fragment, key []byte) (int, error) {
	if len(fragment) < BlockSize {
		return 0, fmt.Errorf("%w: %d bytes is shorter than the iv", ErrMalformedFragment, len(fragment))
	}
	c, err := NewCBCCipher(key)
	if err != nil {
		return 0, err
	}
	return c.DecryptTo(dst, fragment)
}
