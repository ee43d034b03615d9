package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"model_nexus/internal/fragmenter"
	"model_nexus/internal/reconstruct"
	"model_nexus/internal/shared/config"
	"model_nexus/internal/shared/logger"
	"model_nexus/internal/shared/types"
)

var (
	ErrUnknownModel     = errors.New("storage: unknown model")
	ErrChecksumMismatch = errors.New("storage: checksum mismatch")
)

// Bundle is everything needed to reconstruct one model.
type Bundle struct {
	Meta *types.ModelMetadata
	Set  reconstruct.FragmentSet
	Key  []byte
}

// Storage 接口定义了模型分片持久化的行为。
type Storage interface {
	Load(model string) (*Bundle, error)
	Save(model string, res *fragmenter.Result) error
	Version(model string) (string, error)
}

// FileStorage 实现了 Storage 接口, 布局为:
//
//	<root>/<model>/fragments/<fragment file>
//	<root>/<model>/key/<model>_key.bin
//
// plus one JSON metadata file shared by all models.
type FileStorage struct {
	root         string
	metadataFile string
	backupDir    string
	dryRun       bool
	mu           sync.RWMutex
}

// NewFileStorage 创建一个新的 FileStorage 实例。
func NewFileStorage(cfg types.StorageConf) *FileStorage {
	return &FileStorage{
		root:         cfg.FragmentsDir,
		metadataFile: cfg.MetadataFile,
		backupDir:    cfg.BackupDir,
	}
}

// SetDryRun makes Save log what it would do without touching disk.
func (s *FileStorage) SetDryRun(dryRun bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dryRun = dryRun
}

func (s *FileStorage) fragmentsDir(model string) string {
	return filepath.Join(s.root, model, "fragments")
}

func (s *FileStorage) keyPath(model string) string {
	return filepath.Join(s.root, model, "key", model+"_key.bin")
}

// Version returns the stored version of a model, "1.0.0" if it has none.
func (s *FileStorage) Version(model string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index, err := config.LoadMetadata(s.metadataFile)
	if err != nil {
		return "", err
	}
	if meta, ok := index[model]; ok && meta.Version != "" {
		return meta.Version, nil
	}
	return "1.0.0", nil
}

// Load 读取模型的元数据、分片和密钥, 并校验每个分片的 sha256。
func (s *FileStorage) Load(model string) (*Bundle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l := logger.WithComponent("Storage")

	index, err := config.LoadMetadata(s.metadataFile)
	if err != nil {
		return nil, err
	}
	meta, ok := index[model]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}

	if !meta.IsFragmented {
		data, err := os.ReadFile(filepath.Join(s.root, model, meta.OriginalName))
		if err != nil {
			return nil, fmt.Errorf("failed to read model file: %w", err)
		}
		l.Debug().Str("model", model).Msg("Loaded unfragmented model.")
		return &Bundle{
			Meta: meta,
			Set:  reconstruct.FragmentSet{Fragments: []reconstruct.Fragment{data}, EncryptedIndex: reconstruct.NoEncryption},
		}, nil
	}

	fragments := make([]reconstruct.Fragment, len(meta.Fragments))
	for i, info := range meta.Fragments {
		path := filepath.Join(s.fragmentsDir(model), info.Filename)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read fragment %d: %w", i, err)
		}
		if got := fragmenter.Checksum(data); got != info.SHA256 {
			l.Error().Str("path", path).Str("expected", info.SHA256).Str("got", got).Msg("Fragment integrity check failed.")
			return nil, fmt.Errorf("%w: fragment %s", ErrChecksumMismatch, info.Filename)
		}
		fragments[i] = data
	}

	b := &Bundle{
		Meta: meta,
		Set:  reconstruct.FragmentSet{Fragments: fragments, EncryptedIndex: meta.EncryptedIndex()},
	}
	if b.Set.Encrypted() {
		if b.Key, err = os.ReadFile(s.keyPath(model)); err != nil {
			return nil, fmt.Errorf("failed to read encryption key: %w", err)
		}
	}

	l.Info().Str("model", model).Str("version", meta.Version).Int("fragments", len(fragments)).Msg("Successfully loaded model fragments.")
	return b, nil
}

// VerifyModel compares a reconstructed model against the checksum in its metadata.
func VerifyModel(meta *types.ModelMetadata, data []byte) error {
	if got := fragmenter.Checksum(data); got != meta.SHA256 {
		return fmt.Errorf("%w: model %s: expected %s, got %s", ErrChecksumMismatch, meta.OriginalName, meta.SHA256, got)
	}
	return nil
}

// Save backs up the current fragments of a model, replaces them with res and
// records res.Meta in the metadata file.
func (s *FileStorage) Save(model string, res *fragmenter.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := logger.WithComponent("Storage")

	index, err := config.LoadMetadata(s.metadataFile)
	if err != nil {
		return err
	}

	if s.dryRun {
		for _, info := range res.Meta.Fragments {
			l.Info().Str("path", filepath.Join(s.fragmentsDir(model), info.Filename)).Msg("[DRY-RUN] Would write fragment.")
		}
		if res.Key != nil {
			l.Info().Str("path", s.keyPath(model)).Msg("[DRY-RUN] Would write key.")
		}
		l.Info().Str("path", s.metadataFile).Msg("[DRY-RUN] Metadata would be saved.")
		return nil
	}

	if s.backupDir != "" {
		if err := s.backup(model); err != nil {
			return err
		}
	}
	if err := s.clean(model); err != nil {
		return err
	}

	dir := s.fragmentsDir(model)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create fragments directory: %w", err)
	}
	for i, info := range res.Meta.Fragments {
		if err := os.WriteFile(filepath.Join(dir, info.Filename), res.Fragments[i], 0644); err != nil {
			return fmt.Errorf("failed to write fragment %d: %w", i, err)
		}
	}
	if res.Key != nil {
		if err := os.MkdirAll(filepath.Dir(s.keyPath(model)), 0700); err != nil {
			return fmt.Errorf("failed to create key directory: %w", err)
		}
		if err := os.WriteFile(s.keyPath(model), res.Key, 0600); err != nil {
			return fmt.Errorf("failed to save encryption key: %w", err)
		}
	}

	index[model] = res.Meta
	if err := config.SaveMetadata(s.metadataFile, index); err != nil {
		return err
	}

	l.Info().Str("model", model).Str("version", res.Meta.Version).Int("fragments", len(res.Fragments)).Msg("Successfully saved model fragments.")
	return nil
}

// clean 删除模型旧的分片和密钥。
func (s *FileStorage) clean(model string) error {
	if err := os.RemoveAll(s.fragmentsDir(model)); err != nil {
		return fmt.Errorf("failed to clean old fragments for %s: %w", model, err)
	}
	if err := os.Remove(s.keyPath(model)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete old key for %s: %w", model, err)
	}
	return nil
}

// backup copies <root>/<model> to <backupDir>/<model>_<timestamp> and the
// metadata file to <backupDir>/<metadata name>_<timestamp><ext>.
func (s *FileStorage) backup(model string) error {
	l := logger.WithComponent("Storage")
	stamp := time.Now().UTC().Format("20060102_150405")

	if _, err := os.Stat(s.metadataFile); err == nil {
		if err := os.MkdirAll(s.backupDir, 0755); err != nil {
			return fmt.Errorf("failed to create backup directory: %w", err)
		}
		ext := filepath.Ext(s.metadataFile)
		base := strings.TrimSuffix(filepath.Base(s.metadataFile), ext)
		dst := filepath.Join(s.backupDir, fmt.Sprintf("%s_%s%s", base, stamp, ext))
		if err := copyFile(s.metadataFile, dst); err != nil {
			return fmt.Errorf("failed to back up %s: %w", s.metadataFile, err)
		}
		l.Info().Str("from", s.metadataFile).Str("to", dst).Msg("Backed up metadata file.")
	}

	src := filepath.Join(s.root, model)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	dst := filepath.Join(s.backupDir, fmt.Sprintf("%s_%s", model, stamp))

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return copyFile(path, target)
	})
	if err != nil {
		return fmt.Errorf("failed to back up %s: %w", src, err)
	}
	l.Info().Str("from", src).Str("to", dst).Msg("Backed up model directory.")
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
