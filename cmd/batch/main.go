package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pbpd/internal/batch"
	"pbpd/internal/cfg"
	"pbpd/internal/engine"
	"pbpd/internal/ml"
)

func main() {
	var (
		inputPath  = flag.String("input", "", "Path to batch CSV file")
		outputPath = flag.String("output", "", "Output directory for report files (overrides config)")
		workers    = flag.Int("workers", 0, "Row-level parallelism (overrides config)")
		logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *inputPath == "" {
		fmt.Fprintln(os.Stderr, "usage: batch -input <file.csv> [-output <dir>]")
		os.Exit(2)
	}

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if *outputPath != "" {
		config.ReportDir = *outputPath
	}
	if *workers > 0 {
		config.BatchWorkers = *workers
	}

	registry := ml.NewRegistry(config.ModelPaths,
		ml.WithFetcher(ml.NewArtifactFetcher(config.FetchTimeout)),
	)
	eng := engine.New(registry)
	processor := batch.NewProcessor(eng, batch.WithWorkers(config.BatchWorkers))

	file, err := os.Open(*inputPath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *inputPath).Msg("Failed to open input")
	}
	defer file.Close()

	report, err := processor.Process(context.Background(), file)
	if err != nil {
		log.Fatal().Err(err).Msg("Batch processing failed")
	}

	reporter := batch.NewReporter(report, config.ReportDir)
	if err := reporter.GenerateReport(); err != nil {
		log.Fatal().Err(err).Msg("Failed to generate report")
	}

	reporter.WriteSummary(os.Stdout)
	fmt.Printf("\nReports written to %s\n", config.ReportDir)
}
