package types

// CommonConf 包含共有的配置
type CommonConf struct {
	// MaxModelSize bounds the output buffer of one reconstruction, in bytes.
	MaxModelSize int64 `ini:"max_model_size"`
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// StorageConf locates fragments, keys and the metadata file on disk.
type StorageConf struct {
	FragmentsDir string `ini:"fragments_dir"`
	MetadataFile string `ini:"metadata_file"`
	BackupDir    string `ini:"backup_dir"`
}

// FragmentConf controls how models are split.
type FragmentConf struct {
	NumFragments   int      `ini:"num_fragments"`
	EncryptedIndex int      `ini:"encrypted_index"`
	KeyBits        int      `ini:"key_bits"`
	Extensions     []string `ini:"extensions" delim:","`
}

// Config 是统一配置结构体
type Config struct {
	CommonConf   `ini:"common"`
	LogConf      `ini:"log"`
	StorageConf  `ini:"storage"`
	FragmentConf `ini:"fragment"`
}
