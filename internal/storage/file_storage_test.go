package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"model_nexus/internal/fragmenter"
	"model_nexus/internal/reconstruct"
	"model_nexus/internal/shared/config"
	"model_nexus/internal/shared/types"
)

func setupTestStorage(t *testing.T) (*FileStorage, types.StorageConf) {
	t.Helper()
	dir := t.TempDir()
	conf := types.StorageConf{
		FragmentsDir: filepath.Join(dir, "fragmented_models"),
		MetadataFile: filepath.Join(dir, "config", "model_metadata.json"),
		BackupDir:    filepath.Join(dir, "backup"),
	}
	return NewFileStorage(conf), conf
}

func fragmentModel(t *testing.T, data []byte, version string) *fragmenter.Result {
	t.Helper()
	f, err := fragmenter.New(types.FragmentConf{
		NumFragments:   4,
		EncryptedIndex: 3,
		KeyBits:        256,
		Extensions:     []string{".css", ".js", ".png", ".txt"},
	})
	if err != nil {
		t.Fatalf("fragmenter.New() returned an error: %v", err)
	}
	res, err := f.Fragment("text", version, data)
	if err != nil {
		t.Fatalf("Fragment() returned an error: %v", err)
	}
	return res
}

func TestFileStorage_SaveLoadReconstruct(t *testing.T) {
	s, conf := setupTestStorage(t)
	model := bytes.Repeat([]byte("weights"), 1000)

	if err := s.Save("text", fragmentModel(t, model, "1.0.1")); err != nil {
		t.Fatalf("Save() returned an error: %v", err)
	}

	info, err := os.Stat(filepath.Join(conf.FragmentsDir, "text", "key", "text_key.bin"))
	if err != nil {
		t.Fatalf("Expected key file to exist: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected key file mode 0600, but got %v", info.Mode().Perm())
	}

	b, err := s.Load("text")
	if err != nil {
		t.Fatalf("Load() returned an error: %v", err)
	}
	if b.Set.EncryptedIndex != 3 || len(b.Key) != 32 {
		t.Errorf("Expected encrypted index 3 and a 32 byte key, but got %d and %d", b.Set.EncryptedIndex, len(b.Key))
	}

	m, err := reconstruct.Reconstruct(b.Set, b.Key)
	if err != nil {
		t.Fatalf("Reconstruct() returned an error: %v", err)
	}
	defer m.Release()
	if err := VerifyModel(b.Meta, m.Bytes()); err != nil {
		t.Errorf("VerifyModel() returned an error: %v", err)
	}

	version, err := s.Version("text")
	if err != nil || version != "1.0.1" {
		t.Errorf("Expected version '1.0.1', but got '%s' (%v)", version, err)
	}
}

func TestFileStorage_ResaveBacksUpAndCleans(t *testing.T) {
	s, conf := setupTestStorage(t)
	model := []byte("0123456789abcdef")

	first := fragmentModel(t, model, "1.0.0")
	if err := s.Save("text", first); err != nil {
		t.Fatalf("Save() returned an error: %v", err)
	}
	if err := s.Save("text", fragmentModel(t, model, "1.0.1")); err != nil {
		t.Fatalf("second Save() returned an error: %v", err)
	}

	oldPath := filepath.Join(conf.FragmentsDir, "text", "fragments", first.Meta.Fragments[0].Filename)
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Errorf("Expected old fragment to be removed, stat returned %v", err)
	}
	backups, err := os.ReadDir(conf.BackupDir)
	if err != nil {
		t.Fatalf("ReadDir() on the backup directory returned an error: %v", err)
	}
	var modelDir, metadataCopy bool
	for _, e := range backups {
		switch {
		case e.IsDir() && strings.HasPrefix(e.Name(), "text_"):
			modelDir = true
		case !e.IsDir() && strings.HasPrefix(e.Name(), "model_metadata_") && strings.HasSuffix(e.Name(), ".json"):
			metadataCopy = true
			saved, err := config.LoadMetadata(filepath.Join(conf.BackupDir, e.Name()))
			if err != nil {
				t.Fatalf("LoadMetadata() on the backup returned an error: %v", err)
			}
			if saved["text"] == nil || saved["text"].Version != "1.0.0" {
				t.Errorf("Expected backed up metadata at version '1.0.0', but got %+v", saved["text"])
			}
		}
	}
	if !modelDir {
		t.Error("Expected a backup of the model directory")
	}
	if !metadataCopy {
		t.Error("Expected a backup of the metadata file")
	}
}

func TestFileStorage_MissingFragmentChecksum(t *testing.T) {
	s, conf := setupTestStorage(t)
	res := fragmentModel(t, bytes.Repeat([]byte{7}, 64), "1.0.0")
	res.Meta.Fragments[2].SHA256 = ""
	if err := s.Save("text", res); err != nil {
		t.Fatalf("Save() returned an error: %v", err)
	}
	if _, err := os.Stat(conf.MetadataFile); err != nil {
		t.Fatalf("Expected metadata file to exist: %v", err)
	}
	if _, err := s.Load("text"); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Expected ErrChecksumMismatch for a fragment without checksum, but got %v", err)
	}
}

func TestFileStorage_DryRun(t *testing.T) {
	s, conf := setupTestStorage(t)
	s.SetDryRun(true)

	if err := s.Save("text", fragmentModel(t, []byte("0123456789"), "1.0.0")); err != nil {
		t.Fatalf("Save() returned an error: %v", err)
	}
	if _, err := os.Stat(conf.FragmentsDir); !os.IsNotExist(err) {
		t.Error("Expected dry run to leave the disk untouched")
	}
	if _, err := os.Stat(conf.MetadataFile); !os.IsNotExist(err) {
		t.Error("Expected dry run not to write metadata")
	}
}

func TestFileStorage_TamperedFragment(t *testing.T) {
	s, conf := setupTestStorage(t)
	res := fragmentModel(t, bytes.Repeat([]byte{7}, 64), "1.0.0")
	if err := s.Save("text", res); err != nil {
		t.Fatalf("Save() returned an error: %v", err)
	}

	path := filepath.Join(conf.FragmentsDir, "text", "fragments", res.Meta.Fragments[1].Filename)
	if err := os.WriteFile(path, []byte("tampered"), 0644); err != nil {
		t.Fatalf("WriteFile() returned an error: %v", err)
	}
	if _, err := s.Load("text"); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Expected ErrChecksumMismatch, but got %v", err)
	}
}

func TestFileStorage_UnknownModel(t *testing.T) {
	s, _ := setupTestStorage(t)
	if _, err := s.Load("globes"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Expected ErrUnknownModel, but got %v", err)
	}
	version, err := s.Version("globes")
	if err != nil || version != "1.0.0" {
		t.Errorf("Expected default version '1.0.0', but got '%s' (%v)", version, err)
	}
}

func TestVerifyModel(t *testing.T) {
	meta := &types.ModelMetadata{OriginalName: "text.onnx", SHA256: fragmenter.Checksum([]byte("abc"))}
	if err := VerifyModel(meta, []byte("abc")); err != nil {
		t.Errorf("VerifyModel() returned an error: %v", err)
	}
	if err := VerifyModel(meta, []byte("abd")); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Expected ErrChecksumMismatch, but got %v", err)
	}
	meta.SHA256 = ""
	if err := VerifyModel(meta, []byte("abc")); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("Expected ErrChecksumMismatch for a model without checksum, but got %v", err)
	}
}
