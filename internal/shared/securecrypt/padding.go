package securecrypt

import "fmt"

// PadPKCS7 returns data followed by 1..blockSize bytes of PKCS7 padding.
func PadPKCS7(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+padding)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(padding)
	}
	return out
}

// UnpadPKCS7 strips PKCS7 padding. Only the count in the last byte is
// checked; the padding bytes themselves are not compared.
func UnpadPKCS7(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no data", ErrInvalidPadding)
	}
	padding := int(data[len(data)-1])
	if padding < 1 || padding > BlockSize || len(data)-padding < 0 {
		return nil, fmt.Errorf("%w: count %d for %d bytes", ErrInvalidPadding, padding, len(data))
	}
	return data[:len(data)-padding], nil
}
