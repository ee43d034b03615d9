package reconstruct

import (
	"fmt"
	"math"

	"model_nexus/internal/shared/buf"
	"model_nexus/internal/shared/securecrypt"
)

// NoEncryption is the EncryptedIndex of a set whose fragments are all plaintext.
const NoEncryption = -1

var (
	ErrAllocation        = buf.ErrAllocation
	ErrMalformedFragment = securecrypt.ErrMalformedFragment
	ErrInvalidKeyLength  = securecrypt.ErrInvalidKeyLength
	ErrInvalidPadding    = securecrypt.ErrInvalidPadding
)

// Fragment is one caller-owned piece of a model. It is never modified.
type Fragment = []byte

// FragmentSet is the ordered input of one Reconstruct call.
type FragmentSet struct {
	Fragments []Fragment
	// EncryptedIndex is the position of the fragment holding IV || ciphertext.
	// Anything outside [0, len(Fragments)) means no fragment is decrypted.
	EncryptedIndex int
}

// Encrypted reports whether EncryptedIndex names a fragment of the set.
func (s FragmentSet) Encrypted() bool {
	return s.EncryptedIndex >= 0 && s.EncryptedIndex < len(s.Fragments)
}

// TotalSize returns the sum of all fragment lengths, or false if it overflows.
func (s FragmentSet) TotalSize() (int64, bool) {
	var total int64
	for _, f := range s.Fragments {
		if int64(len(f)) > math.MaxInt64-total {
			return 0, false
		}
		total += int64(len(f))
	}
	return total, true
}

// Option configures a Reconstructor.
type Option func(*Reconstructor)

// WithMaxSize caps the output buffer a reconstruction may allocate.
func WithMaxSize(n int64) Option {
	return func(r *Reconstructor) {
		if n > 0 {
			r.maxSize = n
		}
	}
}

// Reconstructor holds no per-call state and is safe for concurrent use.
type Reconstructor struct {
	maxSize int64
}

// New creates a Reconstructor.
func New(opts ...Option) *Reconstructor {
	r := &Reconstructor{maxSize: buf.MaxSize}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxSize returns the output size limit.
func (r *Reconstructor) MaxSize() int64 {
	return r.maxSize
}

var defaultReconstructor = New()

// Reconstruct rebuilds a model with the default Reconstructor.
func Reconstruct(set FragmentSet, key []byte) (*Model, error) {
	return defaultReconstructor.Reconstruct(set, key)
}

// Reconstruct concatenates the fragments in order, replacing the encrypted
// one with its decrypted content. On error no Model is returned and every
// buffer acquired during the call has been released.
func (r *Reconstructor) Reconstruct(set FragmentSet, key []byte) (*Model, error) {
	total, ok := set.TotalSize()
	if !ok {
		return nil, fmt.Errorf("%w: fragment sizes overflow", ErrAllocation)
	}
	out, err := buf.NewLimited(total, r.maxSize)
	if err != nil {
		return nil, err
	}

	encrypted := set.Encrypted()
	for i, fragment := range set.Fragments {
		if encrypted && i == set.EncryptedIndex {
			if _, err := securecrypt.DecryptFragment(out, fragment, key); err != nil {
				out.Release()
				return nil, fmt.Errorf("fragment %d: %w", i, err)
			}
			continue
		}
		copy(out.Extend(len(fragment)), fragment)
	}

	return &Model{buf: out}, nil
}
