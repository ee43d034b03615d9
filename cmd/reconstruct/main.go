package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"model_nexus/internal/reconstruct"
	"model_nexus/internal/shared/config"
	"model_nexus/internal/shared/logger"
	"model_nexus/internal/storage"
)

func main() {
	configDir := flag.String("configdir", "configs", "Path to config directory")
	modelName := flag.String("model", "text", "Model key in the metadata file")
	outPath := flag.String("out", "", "Where to write the reconstructed model (default: <model>.onnx)")
	flag.Parse()

	iniPath := filepath.Join(*configDir, "model_nexus.ini")

	// 1. 加载 .ini 配置
	cfg := config.Default()
	if err := config.LoadIni(cfg, iniPath); err != nil {
		// Use standard fmt before logger is initialized.
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", iniPath, err)
		os.Exit(1)
	}

	// 1.1 初始化日志系统
	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// 2. 读取分片与密钥
	bundle, err := storage.NewFileStorage(cfg.StorageConf).Load(*modelName)
	if err != nil {
		logger.Fatal().Err(err).Msgf("Failed to load fragments of model '%s'", *modelName)
	}

	// 3. 重建模型
	r := reconstruct.New(reconstruct.WithMaxSize(cfg.MaxModelSize))
	logger.Debug().Str("model", *modelName).Int64("max_size", r.MaxSize()).Msg("Reconstructing model.")
	model, err := r.Reconstruct(bundle.Set, bundle.Key)
	if err != nil {
		logger.Fatal().Err(err).Str("model", *modelName).Msg("Failed to reconstruct model")
	}
	defer model.Release()

	if err := storage.VerifyModel(bundle.Meta, model.Bytes()); err != nil {
		model.Release()
		logger.Fatal().Err(err).Msg("Reconstructed model failed verification")
	}

	target := *outPath
	if target == "" {
		target = bundle.Meta.OriginalName
	}
	if err := os.WriteFile(target, model.Bytes(), 0644); err != nil {
		model.Release()
		logger.Fatal().Err(err).Msgf("Failed to write '%s'", target)
	}

	logger.Info().
		Str("model", *modelName).
		Str("version", bundle.Meta.Version).
		Int("bytes", model.Len()).
		Int("capacity", model.Cap()).
		Str("out", target).
		Msg("Model reconstructed.")
}
