// Package fragmenter splits a model into fragments and encrypts one of them,
// producing the input that package reconstruct consumes.
package fragmenter

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"model_nexus/internal/shared/securecrypt"
	"model_nexus/internal/shared/types"
)

var (
	ErrTooSmall       = errors.New("fragmenter: model too small")
	ErrInvalidVersion = errors.New("fragmenter: invalid version")
)

// Result is a fragmented model ready to be persisted.
type Result struct {
	Meta      *types.ModelMetadata
	Fragments [][]byte
	// Key is nil when no fragment is encrypted.
	Key []byte
}

// Fragmenter holds the split parameters.
type Fragmenter struct {
	numFragments   int
	encryptedIndex int
	keySize        securecrypt.KeySize
	extensions     []string
}

// ValidateConf checks the [fragment] config section. A negative
// EncryptedIndex is allowed and leaves every fragment in plaintext.
func ValidateConf(cfg types.FragmentConf) error {
	if cfg.NumFragments < 1 {
		return fmt.Errorf("num_fragments must be at least 1, got %d", cfg.NumFragments)
	}
	if cfg.EncryptedIndex >= cfg.NumFragments {
		return fmt.Errorf("encrypted_index %d is out of range for %d fragments", cfg.EncryptedIndex, cfg.NumFragments)
	}
	if len(cfg.Extensions) != 0 && len(cfg.Extensions) != cfg.NumFragments {
		return fmt.Errorf("got %d extensions for %d fragments", len(cfg.Extensions), cfg.NumFragments)
	}
	_, err := securecrypt.ParseKeyBits(cfg.KeyBits)
	return err
}

// New builds a Fragmenter from the [fragment] config section.
func New(cfg types.FragmentConf) (*Fragmenter, error) {
	if err := ValidateConf(cfg); err != nil {
		return nil, err
	}
	keySize, err := securecrypt.ParseKeyBits(cfg.KeyBits)
	if err != nil {
		return nil, err
	}
	return &Fragmenter{
		numFragments:   cfg.NumFragments,
		encryptedIndex: cfg.EncryptedIndex,
		keySize:        keySize,
		extensions:     cfg.Extensions,
	}, nil
}

func (f *Fragmenter) encrypts() bool {
	return f.encryptedIndex >= 0 && f.encryptedIndex < f.numFragments
}

// Fragment splits data, encrypts the configured fragment under a fresh key
// and describes the result.
func (f *Fragmenter) Fragment(modelName, version string, data []byte) (*Result, error) {
	if !ValidateVersion(version) {
		return nil, fmt.Errorf("%w: %q, must be X.Y.Z", ErrInvalidVersion, version)
	}
	parts, err := Split(data, f.numFragments)
	if err != nil {
		return nil, fmt.Errorf("failed to fragment model %s: %w", modelName, err)
	}

	res := &Result{Fragments: parts}
	if f.encrypts() {
		res.Key, err = securecrypt.GenerateKey(f.keySize)
		if err != nil {
			return nil, err
		}
		c, err := securecrypt.NewCBCCipher(res.Key)
		if err != nil {
			return nil, err
		}
		if parts[f.encryptedIndex], err = c.Encrypt(parts[f.encryptedIndex]); err != nil {
			return nil, fmt.Errorf("encryption failed: %w", err)
		}
	}

	res.Meta = &types.ModelMetadata{
		Version:      version,
		OriginalName: modelName + ".onnx",
		SHA256:       Checksum(data),
		IsFragmented: true,
		Fragments:    make([]types.FragmentInfo, len(parts)),
	}
	for i, part := range parts {
		res.Meta.Fragments[i] = types.FragmentInfo{
			Filename:    f.fragmentName(modelName, i),
			SHA256:      Checksum(part),
			IsEncrypted: f.encrypts() && i == f.encryptedIndex,
		}
	}
	return res, nil
}

func (f *Fragmenter) fragmentName(modelName string, i int) string {
	ext := ".bin"
	if len(f.extensions) > i {
		ext = f.extensions[i]
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return fmt.Sprintf("%s_chunk_%s%s", modelName, id, ext)
}

// Split cuts data into n fragments of len(data)/n bytes, the last one
// taking the remainder. The fragments alias data.
func Split(data []byte, n int) ([][]byte, error) {
	if n < 1 {
		return nil, fmt.Errorf("fragment count must be at least 1, got %d", n)
	}
	if len(data) < n {
		return nil, fmt.Errorf("%w: %d bytes cannot make %d fragments", ErrTooSmall, len(data), n)
	}
	size := len(data) / n
	parts := make([][]byte, n)
	for i := 0; i < n-1; i++ {
		parts[i] = data[i*size : (i+1)*size : (i+1)*size]
	}
	parts[n-1] = data[(n-1)*size:]
	return parts, nil
}

// Checksum returns the hex sha256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ValidateVersion reports whether v has the form X.Y.Z with numeric parts.
func ValidateVersion(v string) bool {
	parts := strings.Split(v, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if _, err := strconv.ParseUint(p, 10, 32); err != nil {
			return false
		}
	}
	return true
}

// NextVersion bumps the patch number: X.Y.Z -> X.Y.(Z+1).
func NextVersion(current string) (string, error) {
	if !ValidateVersion(current) {
		return "", fmt.Errorf("%w: %q, must be X.Y.Z", ErrInvalidVersion, current)
	}
	parts := strings.Split(current, ".")
	patch, _ := strconv.Atoi(parts[2])
	return fmt.Sprintf("%s.%s.%d", parts[0], parts[1], patch+1), nil
}
