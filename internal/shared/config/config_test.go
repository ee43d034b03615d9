package config

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"model_nexus/internal/shared/types"
)

const sampleIni = `
[common]
max_model_size = 1048576

[log]
level = debug

[storage]
fragments_dir = /srv/fragments
metadata_file = /srv/model_metadata.json

[fragment]
num_fragments = 3
encrypted_index = 1
key_bits = 128
extensions = .a,.b,.c
`

func TestLoadIni(t *testing.T) {
	cfg := Default()
	if err := LoadIni(cfg, []byte(sampleIni)); err != nil {
		t.Fatalf("LoadIni() returned an error: %v", err)
	}
	if cfg.MaxModelSize != 1048576 {
		t.Errorf("Expected max_model_size 1048576, but got %d", cfg.MaxModelSize)
	}
	if cfg.Level != "debug" {
		t.Errorf("Expected level 'debug', but got '%s'", cfg.Level)
	}
	if cfg.FragmentsDir != "/srv/fragments" {
		t.Errorf("Expected fragments_dir '/srv/fragments', but got '%s'", cfg.FragmentsDir)
	}
	if cfg.NumFragments != 3 || cfg.EncryptedIndex != 1 || cfg.KeyBits != 128 {
		t.Errorf("Unexpected fragment section: %+v", cfg.FragmentConf)
	}
	if len(cfg.Extensions) != 3 || cfg.Extensions[2] != ".c" {
		t.Errorf("Expected 3 extensions ending in '.c', but got %v", cfg.Extensions)
	}
	// Keys missing from the file keep their defaults.
	if cfg.BackupDir != "backup" {
		t.Errorf("Expected default backup_dir, but got '%s'", cfg.BackupDir)
	}
}

func TestLoadIni_EnvOverride(t *testing.T) {
	t.Setenv("MODEL_NEXUS_FRAGMENTS_DIR", "/tmp/elsewhere")
	t.Setenv("MODEL_NEXUS_MAX_SIZE", "4096")

	cfg := Default()
	if err := LoadIni(cfg, []byte(sampleIni)); err != nil {
		t.Fatalf("LoadIni() returned an error: %v", err)
	}
	if cfg.FragmentsDir != "/tmp/elsewhere" {
		t.Errorf("Expected env override of fragments_dir, but got '%s'", cfg.FragmentsDir)
	}
	if cfg.MaxModelSize != 4096 {
		t.Errorf("Expected env override of max_model_size, but got %d", cfg.MaxModelSize)
	}
}

func TestLoadIni_Invalid(t *testing.T) {
	cfg := Default()
	err := LoadIni(cfg, []byte("[fragment]\nnum_fragments = 2\nencrypted_index = 2\nextensions = .a,.b\n"))
	if err == nil {
		t.Error("Expected an error for an out of range encrypted_index")
	}

	cfg = Default()
	if err := LoadIni(cfg, []byte("[fragment]\nkey_bits = 512\n")); err == nil {
		t.Error("Expected an error for an unsupported key_bits")
	}

	cfg = Default()
	if err := LoadIni(cfg, []byte("[common]\nmax_model_size = 0\n")); err == nil {
		t.Error("Expected an error for a zero max_model_size")
	}
}

func TestMetadata_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "model_metadata.json")

	index, err := LoadMetadata(path)
	if err != nil {
		t.Fatalf("LoadMetadata() on a missing file returned an error: %v", err)
	}
	if len(index) != 0 {
		t.Errorf("Expected empty index, but got %d entries", len(index))
	}

	index["text"] = &types.ModelMetadata{
		Version:      "1.0.1",
		OriginalName: "text.onnx",
		SHA256:       "abc",
		IsFragmented: true,
		Fragments: []types.FragmentInfo{
			{Filename: "text_chunk_1.css", SHA256: "1"},
			{Filename: "text_chunk_2.js", SHA256: "2", IsEncrypted: true},
		},
	}
	if err := SaveMetadata(path, index); err != nil {
		t.Fatalf("SaveMetadata() returned an error: %v", err)
	}

	loaded, err := LoadMetadata(path)
	if err != nil {
		t.Fatalf("LoadMetadata() returned an error: %v", err)
	}
	if diff := cmp.Diff(index, loaded); diff != "" {
		t.Fatalf("metadata changed across save/load (-want +got):\n%s", diff)
	}
	meta := loaded["text"]
	if meta.EncryptedIndex() != 1 {
		t.Errorf("Expected encrypted index 1, but got %d", meta.EncryptedIndex())
	}
}
