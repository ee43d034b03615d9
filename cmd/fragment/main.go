package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"model_nexus/internal/fragmenter"
	"model_nexus/internal/shared/config"
	"model_nexus/internal/shared/logger"
	"model_nexus/internal/storage"
)

func main() {
	configDir := flag.String("configdir", "configs", "Path to config directory")
	inPath := flag.String("in", "", "Model file to fragment")
	modelName := flag.String("model", "", "Model key in the metadata file (default: input file name without extension)")
	version := flag.String("version", "", "Version to record, X.Y.Z (default: bump the stored patch version)")
	apply := flag.Bool("apply", false, "Write fragments to disk (default: dry run)")
	flag.Parse()

	iniPath := filepath.Join(*configDir, "model_nexus.ini")

	cfg := config.Default()
	if err := config.LoadIni(cfg, iniPath); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to load config file '%s': %v\n", iniPath, err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.LogConf); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if *inPath == "" {
		logger.Fatal().Msg("-in is required")
	}
	name := *modelName
	if name == "" {
		base := filepath.Base(*inPath)
		name = base[:len(base)-len(filepath.Ext(base))]
	}

	store := storage.NewFileStorage(cfg.StorageConf)
	store.SetDryRun(!*apply)

	v := *version
	if v == "" {
		current, err := store.Version(name)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to read stored version")
		}
		if v, err = fragmenter.NextVersion(current); err != nil {
			logger.Fatal().Err(err).Msg("Failed to bump version")
		}
	}
	logger.Info().Str("model", name).Str("version", v).Bool("apply", *apply).Msg("Fragmenting model.")

	data, err := os.ReadFile(*inPath)
	if err != nil {
		logger.Fatal().Err(err).Msgf("Failed to read '%s'", *inPath)
	}

	f, err := fragmenter.New(cfg.FragmentConf)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid [fragment] configuration")
	}
	res, err := f.Fragment(name, v, data)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to fragment model")
	}

	if err := store.Save(name, res); err != nil {
		logger.Fatal().Err(err).Msg("Failed to save fragments")
	}
	if !*apply {
		logger.Info().Msg("Dry run complete, pass -apply to write fragments.")
	}
}
