package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/kdimtricp/slidecap/internal/api"
	"github.com/kdimtricp/slidecap/internal/batch"
	"github.com/kdimtricp/slidecap/internal/capture"
	"github.com/kdimtricp/slidecap/internal/catalog"
	"github.com/kdimtricp/slidecap/internal/config"
	"github.com/kdimtricp/slidecap/internal/progress"
)

func main() {
	var (
		inDir       = flag.String("in", "", "Directory to scan for videos")
		outDir      = flag.String("out", "slides", "Root output directory")
		configPath  = flag.String("config", "", "TOML config file (defaults apply when omitted)")
		catalogPath = flag.String("catalog", "", "SQLite catalog to record runs in (optional)")
		workers     = flag.Int("workers", 2, "Number of videos processed in parallel")
		force       = flag.Bool("force", false, "Reprocess videos already marked completed")
		recursive   = flag.Bool("recursive", true, "Descend into subdirectories of the input")
		progressLoc = flag.String("progress", "", "Progress file location (default <out>/batch_progress.json)")
		listen      = flag.String("listen", "", "Serve the status API on this address while running (optional)")
	)
	flag.Parse()

	if *inDir == "" {
		log.Fatal("Please provide an input directory with the -in flag")
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatal("Failed to load config: ", err)
		}
		cfg = loaded
	}

	progressPath := *progressLoc
	if progressPath == "" {
		progressPath = filepath.Join(*outDir, "batch_progress.json")
	}
	store, err := progress.NewFileStore(progressPath)
	if err != nil {
		log.Fatal("Failed to open progress store: ", err)
	}

	var repo *catalog.RunRepo
	if *catalogPath != "" {
		db, err := catalog.Open(*catalogPath)
		if err != nil {
			log.Fatal("Failed to open catalog: ", err)
		}
		defer db.Close()
		repo = catalog.NewRunRepo(db)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *listen != "" {
		if repo == nil {
			log.Fatal("The status API requires -catalog")
		}
		go func() {
			app := &api.App{Runs: repo, Progress: store}
			log.Printf("status API listening on %s", *listen)
			if err := http.ListenAndServe(*listen, api.NewRouter(app)); err != nil {
				log.Printf("status API stopped: %v", err)
			}
		}()
	}

	session := capture.NewSession(cfg)
	runner := &batch.Runner{
		Store:     store,
		Workers:   *workers,
		Force:     *force,
		Recursive: *recursive,
		Process: func(ctx context.Context, videoPath, videoOut string) (*capture.Metadata, error) {
			meta, err := session.Process(ctx, videoPath, videoOut)
			if meta != nil && repo != nil {
				if _, cerr := repo.RecordRun(ctx, videoOut, meta); cerr != nil {
					log.Printf("failed to catalog %s: %v", videoPath, cerr)
				}
			}
			return meta, err
		},
	}

	results, err := runner.Run(ctx, *inDir, *outDir)
	if err != nil {
		log.Fatal("Batch run failed: ", err)
	}

	fmt.Println(renderSummary(results))

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		fmt.Printf("%d of %d videos failed\n", failed, len(results))
		os.Exit(1)
	}
}

func renderSummary(results []batch.Result) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Video", "Status", "Slides", "Detail"})

	for _, res := range results {
		detail := ""
		switch {
		case res.Err != nil:
			detail = res.Err.Error()
		case res.Skipped:
			detail = "already completed"
		}
		tw.AppendRow(table.Row{
			filepath.Base(res.VideoPath),
			string(res.Status),
			res.Slides,
			detail,
		})
	}

	return tw.Render()
}
