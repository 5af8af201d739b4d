package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/dustin/go-humanize"

	"gridreplay.ai/internal/game"
	"gridreplay.ai/internal/ingest"
	"gridreplay.ai/internal/logging"
	"gridreplay.ai/internal/persistence/matchdb"
)

func main() {
	var (
		replayDir = flag.String("replays", "./data/replays", "directory of replay logs")
		file      = flag.String("file", "", "ingest a single replay log instead of -replays")
		tablesDir = flag.String("tables", "./data/tables", "output dir for persisted tables")
		dbPath    = flag.String("db", "./data/matches.sqlite", "match database (empty to disable)")
		rulesPath = flag.String("rules", "./configs/rules.yaml", "rules yaml")
		workers   = flag.Int("workers", runtime.NumCPU(), "replays parsed in parallel")
		validate  = flag.Bool("validate", false, "validate every log line against the record schema")
		force     = flag.Bool("force", false, "re-ingest replays ingested before")
		logLevel  = flag.String("log_level", os.Getenv("LOG_LEVEL"), "log level")
		logFormat = flag.String("log_format", os.Getenv("LOG_FORMAT"), "log format (console|json)")
	)
	flag.Parse()

	logger := logging.New(*logLevel, *logFormat).With().Str("cmd", "ingest").Logger()

	rules, err := game.LoadRules(*rulesPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rules:", err)
		os.Exit(1)
	}

	var db *matchdb.Store
	if *dbPath != "" {
		db, err = matchdb.Open(*dbPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "open db:", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	p, err := ingest.New(ingest.Config{
		TablesDir: *tablesDir,
		Rules:     rules,
		Validate:  *validate,
		Force:     *force,
	}, db, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pipeline:", err)
		os.Exit(1)
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *file != "" {
		res, err := p.IngestFile(ctx, *file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ingest %s: %v\n", *file, err)
			os.Exit(1)
		}
		fmt.Printf("replay %d: actions=%d snapshots=%d rounds=%d (%s)\n",
			res.ReplayID, res.Actions, res.Snapshots, res.Rounds, humanize.Bytes(uint64(res.Bytes)))
		return
	}

	sum, err := p.IngestDir(ctx, *replayDir, *workers)
	fmt.Printf("run %s: files=%d ingested=%d skipped=%d failed=%d (%s)\n",
		sum.RunID, sum.Files, sum.Ingested, sum.Skipped, sum.Failed, humanize.Bytes(uint64(sum.Bytes)))
	for _, r := range sum.Results {
		if r.Error != "" {
			fmt.Fprintf(os.Stderr, "  replay %d: %s\n", r.ReplayID, r.Error)
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "ingest:", err)
		os.Exit(1)
	}
	if sum.Failed > 0 {
		os.Exit(1)
	}
}
