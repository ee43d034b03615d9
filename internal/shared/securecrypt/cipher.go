package securecrypt

import (
	"crypto/aes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// BlockSize is the AES block size, also the size of the IV prefix.
const BlockSize = aes.BlockSize

var (
	// ErrMalformedFragment is returned when an encrypted fragment cannot hold an IV and whole blocks.
	ErrMalformedFragment = errors.New("securecrypt: malformed encrypted fragment")
	// ErrInvalidKeyLength is returned when the key is not 128, 192 or 256 bits.
	ErrInvalidKeyLength = errors.New("securecrypt: invalid key length")
	// ErrInvalidPadding is returned when the PKCS7 padding count is out of range.
	ErrInvalidPadding = errors.New("securecrypt: invalid padding")
)

// KeySize is an AES key size in bits.
type KeySize int

const (
	KeySize128 KeySize = 128
	KeySize192 KeySize = 192
	KeySize256 KeySize = 256
)

// ParseKeySize maps a key length in bytes to a KeySize.
// Any length other than 16, 24 or 32 is rejected.
func ParseKeySize(byteLen int) (KeySize, error) {
	switch byteLen {
	case 16:
		return KeySize128, nil
	case 24:
		return KeySize192, nil
	case 32:
		return KeySize256, nil
	default:
		return 0, fmt.Errorf("%w: %d bytes", ErrInvalidKeyLength, byteLen)
	}
}

// ParseKeyBits maps a bit count, as found in config files, to a KeySize.
func ParseKeyBits(bits int) (KeySize, error) {
	switch k := KeySize(bits); k {
	case KeySize128, KeySize192, KeySize256:
		return k, nil
	default:
		return 0, fmt.Errorf("%w: %d bits", ErrInvalidKeyLength, bits)
	}
}

// Bytes returns the key length in bytes.
func (k KeySize) Bytes() int {
	return int(k) / 8
}

func (k KeySize) String() string {
	return fmt.Sprintf("AES-%d", int(k))
}

// GenerateKey returns a random key of the given size.
func GenerateKey(size KeySize) ([]byte, error) {
	if _, err := ParseKeyBits(int(size)); err != nil {
		return nil, err
	}
	key := make([]byte, size.Bytes())
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}
