package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/ini.v1"

	"model_nexus/internal/fragmenter"
	"model_nexus/internal/shared/types"
)

// Default returns the configuration used when a key is missing from the ini file.
func Default() *types.Config {
	return &types.Config{
		CommonConf: types.CommonConf{MaxModelSize: 2 << 30},
		LogConf:    types.LogConf{Level: "info"},
		StorageConf: types.StorageConf{
			FragmentsDir: "models/fragmented_models",
			MetadataFile: "config/model_metadata.json",
			BackupDir:    "backup",
		},
		FragmentConf: types.FragmentConf{
			NumFragments:   4,
			EncryptedIndex: 3,
			KeyBits:        256,
			Extensions:     []string{".css", ".js", ".png", ".txt"},
		},
	}
}

// LoadIni 加载 model_nexus.ini 配置文件, source 可以是文件名或 []byte。
func LoadIni(cfg *types.Config, source interface{}) error {
	iniFile, err := ini.Load(source)
	if err != nil {
		return err
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return err
	}
	overrideFromEnvString(&cfg.StorageConf.FragmentsDir, "MODEL_NEXUS_FRAGMENTS_DIR")
	overrideFromEnvInt64(&cfg.CommonConf.MaxModelSize, "MODEL_NEXUS_MAX_SIZE")
	return Validate(cfg)
}

// Validate checks the loaded configuration. The [fragment] section rules
// live in fragmenter.ValidateConf.
func Validate(cfg *types.Config) error {
	if err := fragmenter.ValidateConf(cfg.FragmentConf); err != nil {
		return err
	}
	if cfg.CommonConf.MaxModelSize <= 0 {
		return fmt.Errorf("max_model_size must be positive, got %d", cfg.CommonConf.MaxModelSize)
	}
	return nil
}

// LoadMetadata 加载 model_metadata.json 数据文件。
func LoadMetadata(fileName string) (types.MetadataIndex, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		// 如果文件不存在，返回一个空索引而不是错误
		if os.IsNotExist(err) {
			return types.MetadataIndex{}, nil
		}
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	index := types.MetadataIndex{}
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(fileName), err)
	}
	return index, nil
}

// SaveMetadata 将模型元数据保存到 model_metadata.json。
func SaveMetadata(fileName string, index types.MetadataIndex) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model metadata: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(fileName), 0755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}
	return os.WriteFile(fileName, data, 0644)
}

func overrideFromEnvString(target *string, envName string) {
	if envValue := os.Getenv(envName); envValue != "" {
		*target = envValue
	}
}

func overrideFromEnvInt64(target *int64, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.ParseInt(envValue, 10, 64); err == nil {
			*target = intValue
		}
	}
}
