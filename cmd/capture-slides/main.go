package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kdimtricp/slidecap/internal/capture"
	"github.com/kdimtricp/slidecap/internal/catalog"
	"github.com/kdimtricp/slidecap/internal/config"
)

func main() {
	var (
		videoPath   = flag.String("video", "", "Video file to capture slides from")
		outDir      = flag.String("out", "slides", "Output directory for slide images and metadata")
		configPath  = flag.String("config", "", "TOML config file (defaults apply when omitted)")
		catalogPath = flag.String("catalog", "", "SQLite catalog to record the run in (optional)")
		threshold   = flag.Float64("threshold", 0, "Override similarity threshold (0 keeps config value)")
		workers     = flag.Int("workers", 0, "Override fingerprint concurrency (0 keeps config value)")
	)
	flag.Parse()

	if *videoPath == "" {
		log.Fatal("Please provide a video with the -video flag")
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal("Failed to load config: ", err)
		}
		cfg = loaded
	}
	if *threshold > 0 {
		cfg.SimilarityThreshold = *threshold
	}
	if *workers > 0 {
		cfg.Concurrency = *workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var runs *catalog.RunRepo
	if *catalogPath != "" {
		db, err := catalog.Open(*catalogPath)
		if err != nil {
			log.Fatal("Failed to open catalog: ", err)
		}
		defer db.Close()
		runs = catalog.NewRunRepo(db)

		if prev, err := runs.LatestRunForVideo(ctx, *videoPath); err != nil {
			log.Fatal("Failed to query catalog: ", err)
		} else if prev != nil {
			fmt.Printf("Note: %s was already captured on %s (%d slides in %s)\n",
				*videoPath, prev.CreatedAt.Format("2006-01-02"), prev.SlideCount, prev.OutputDir)
		}
	}

	session := capture.NewSession(cfg)
	meta, err := session.Process(ctx, *videoPath, *outDir)
	switch {
	case errors.Is(err, capture.ErrEmptyResult):
		fmt.Println("No slides found.")
	case errors.Is(err, capture.ErrPartialWrite):
		log.Printf("Warning: %v", err)
	case err != nil:
		log.Fatal("Capture failed: ", err)
	}

	fmt.Printf("Captured %d slides from %s into %s\n", len(meta.Slides), *videoPath, *outDir)
	for _, slide := range meta.Slides {
		status := "✓"
		if slide.Failed {
			status = "✗"
		}
		fmt.Printf("%s %s (t=%.1fs, %s)\n", status, slide.Filename, slide.Timestamp, slide.DetectionReason)
	}

	if runs != nil {
		run, err := runs.RecordRun(ctx, *outDir, meta)
		if err != nil {
			log.Fatal("Failed to record run: ", err)
		}
		fmt.Printf("Recorded run %s\n", run.ID)
	}

	if errors.Is(err, capture.ErrPartialWrite) {
		os.Exit(1)
	}
}
