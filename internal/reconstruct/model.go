package reconstruct

import "model_nexus/internal/shared/buf"

// Model is a reconstructed byte stream. The caller owns it and must release
// it exactly once with Release; the bytes must not be used afterwards.
type Model struct {
	buf *buf.Buffer
}

// Bytes returns the reconstructed content, Len() bytes long.
func (m *Model) Bytes() []byte {
	if m == nil {
		return nil
	}
	return m.buf.Bytes()
}

// Len returns the number of bytes written.
func (m *Model) Len() int {
	if m == nil {
		return 0
	}
	return m.buf.Len()
}

// Cap returns the allocated capacity, the sum of all fragment lengths.
// It is at least Len().
func (m *Model) Cap() int {
	if m == nil {
		return 0
	}
	return m.buf.Cap()
}

func (m *Model) String() string {
	return string(m.Bytes())
}

// Release wipes and frees the model's storage.
func (m *Model) Release() {
	if m == nil {
		return
	}
	m.buf.Release()
}

// Release frees a model returned by Reconstruct. A nil model is ignored.
func Release(m *Model) {
	m.Release()
}
