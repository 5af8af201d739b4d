package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gridreplay.ai/internal/fetch"
	"gridreplay.ai/internal/logging"
)

func main() {
	var (
		baseURL   = flag.String("api", fetch.DefaultBaseURL, "platform api base url")
		user      = flag.String("user", "", "username whose matches are listed")
		opponent  = flag.String("opponent", "", "only matches with a player whose name contains this")
		since     = flag.String("since", "", "only matches created at or after this time (RFC 3339)")
		until     = flag.String("until", "", "only matches created at or before this time (RFC 3339)")
		maxCount  = flag.Int("max", 0, "stop after this many matches (0 = no limit)")
		pageSize  = flag.Int("page", 20, "matches listed per request")
		outDir    = flag.String("out", "./data/replays", "directory for downloaded replays")
		logLevel  = flag.String("log_level", os.Getenv("LOG_LEVEL"), "log level")
		logFormat = flag.String("log_format", os.Getenv("LOG_FORMAT"), "log format (console|json)")
	)
	flag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "missing -user")
		os.Exit(2)
	}
	q := fetch.Query{Username: *user, Opponent: *opponent, MaxCount: *maxCount, PageSize: *pageSize}
	var err error
	if q.Since, err = parseTime(*since); err != nil {
		fmt.Fprintln(os.Stderr, "-since:", err)
		os.Exit(2)
	}
	if q.Until, err = parseTime(*until); err != nil {
		fmt.Fprintln(os.Stderr, "-until:", err)
		os.Exit(2)
	}

	logger := logging.New(*logLevel, *logFormat).With().Str("cmd", "fetch").Logger()
	c, err := fetch.New(*baseURL, os.Getenv("GRIDREPLAY_TOKEN"), logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "client (set GRIDREPLAY_TOKEN):", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := c.Crawl(ctx, q, *outDir)
	fmt.Printf("listed=%d downloaded=%d cached=%d filtered=%d\n", res.Listed, res.Downloaded, res.Cached, res.Filtered)
	if err != nil {
		fmt.Fprintln(os.Stderr, "crawl:", err)
		os.Exit(1)
	}
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
