// Package reconstruct rebuilds a model from an ordered list of fragments, one
// of which may be encrypted.
//
// The encrypted fragment is laid out as a 16 byte IV followed by AES-CBC
// ciphertext of the PKCS7 padded plaintext. A call runs in one pass:
//
//	sum fragment lengths ──► allocate output (capacity = sum)
//	        │
//	        ▼
//	for each fragment in order:
//	    plaintext  ──► copy at write offset
//	    encrypted  ──► check length ≥ 16 ──► check key size
//	                   ──► CBC decrypt into scratch ──► strip padding
//	                   ──► copy at write offset, wipe scratch
//	        │
//	        ▼
//	Model{bytes[:offset]}  (Len ≤ Cap)
//
// An EncryptedIndex outside the fragment range disables decryption and every
// fragment, including the one at that index if any, is copied as is.
//
// Failures are returned as errors wrapping ErrAllocation,
// ErrMalformedFragment, ErrInvalidKeyLength or ErrInvalidPadding. No partial
// output is ever returned. Integrity of fragment contents is not checked here.
package reconstruct
