package types

// FragmentInfo 描述模型的一个分片
type FragmentInfo struct {
	Filename    string `json:"filename"`
	SHA256      string `json:"sha256"`
	IsEncrypted bool   `json:"is_encrypted"`
}

// ModelMetadata is one entry of model_metadata.json.
type ModelMetadata struct {
	Version      string         `json:"version"`
	OriginalName string         `json:"original_name"`
	SHA256       string         `json:"sha256"`
	IsFragmented bool           `json:"is_fragmented"`
	Fragments    []FragmentInfo `json:"fragments,omitempty"`
}

// EncryptedIndex returns the position of the encrypted fragment, or -1.
func (m *ModelMetadata) EncryptedIndex() int {
	for i, f := range m.Fragments {
		if f.IsEncrypted {
			return i
		}
	}
	return -1
}

// MetadataIndex maps a model key (e.g. "text") to its metadata.
type MetadataIndex map[string]*ModelMetadata
