package main

import (
	"flag"
	"fmt"
	"os"

	"gridreplay.ai/internal/game"
	"gridreplay.ai/internal/logging"
	"gridreplay.ai/internal/persistence/tables"
	"gridreplay.ai/internal/replay"
	"gridreplay.ai/internal/replaylog"
)

func main() {
	var (
		logPath   = flag.String("log", "", "replay log to parse (.json/.jsonl, optionally .zst)")
		tablesDir = flag.String("tables", "./data/tables", "persisted tables dir (used with -id)")
		id        = flag.Int64("id", 0, "replay id to load from -tables")
		rulesPath = flag.String("rules", "./configs/rules.yaml", "rules yaml (used with -log)")
		validate  = flag.Bool("validate", false, "validate every log line against the record schema")
		round     = flag.Int("round", 0, "round to show")
		action    = flag.Int("action", 0, "action index to show")
		step      = flag.Bool("step", false, "print every navigable state from -round/-action on")
		board     = flag.Bool("board", true, "print the board")
		list      = flag.Bool("list", false, "print the action table and exit")
	)
	flag.Parse()

	log := logging.FromEnv()

	var (
		t   *replay.Tables
		err error
	)
	switch {
	case *logPath != "":
		rules, rerr := game.LoadRules(*rulesPath)
		if rerr != nil {
			fmt.Fprintln(os.Stderr, "rules:", rerr)
			os.Exit(1)
		}
		p := replay.NewParser(rules, log)
		if *validate {
			v, verr := replaylog.NewValidator()
			if verr != nil {
				fmt.Fprintln(os.Stderr, "schema:", verr)
				os.Exit(1)
			}
			p.WithValidator(v)
		}
		t, err = p.ParseFile(*logPath)
	case *id != 0:
		t, err = tables.Read(*tablesDir, *id)
	default:
		fmt.Fprintln(os.Stderr, "missing -log or -id")
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "load replay:", err)
		os.Exit(1)
	}

	fmt.Printf("replay %d grid=%d rounds=%d actions=%d snapshots=%d ended=%v\n",
		t.ReplayID, t.GridSize, t.Rounds(), len(t.Actions), t.Snapshots(), t.Outcome.Ended)

	if *list {
		for _, a := range t.Actions {
			fmt.Printf("%4d %3d  p%-2d %s\n", a.Round, a.Index, a.Player, a.Description)
		}
		return
	}

	l, err := replay.NewLoader(t)
	if err != nil {
		fmt.Fprintln(os.Stderr, "loader:", err)
		os.Exit(1)
	}
	s, err := l.JumpTo(*round, *action)
	if err != nil {
		fmt.Fprintln(os.Stderr, "jump:", err)
		os.Exit(1)
	}
	for {
		show(os.Stdout, l.CurrentAction(), s, *board)
		if !*step || !l.Advance() {
			break
		}
		s = l.Snapshot()
	}
	if *step && t.Outcome.Ended {
		fmt.Printf("game over: player %d wins (%s)\n", t.Outcome.Winner, t.Outcome.Reason)
	}
}
