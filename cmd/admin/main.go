package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"proxiverse.dev/internal/persistence/indexdb"
)

// Small operator CLI over the sqlite index.
//
//	admin -data ./data ticks [-n 20]
//	admin -data ./data audits [-n 20]
func main() {
	var (
		dataDir = flag.String("data", "./data", "runtime data directory")
		n       = flag.Int("n", 20, "number of rows to show")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[admin] ", log.LstdFlags)

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "ticks"
	}

	idx, err := indexdb.Open(filepath.Join(*dataDir, "index.db"))
	if err != nil {
		logger.Fatalf("open index db: %v", err)
	}
	defer idx.Close()

	switch cmd {
	case "ticks":
		rows, err := idx.RecentTicks(*n)
		if err != nil {
			logger.Fatalf("query ticks: %v", err)
		}
		fmt.Printf("%-10s %-6s %-6s %-8s %-20s %s\n", "TICK", "JOINS", "LEAVES", "ACTIONS", "RECORDED", "DIGEST")
		for _, r := range rows {
			fmt.Printf("%-10d %-6d %-6d %-8d %-20s %.16s\n", r.Tick, r.Joins, r.Leaves, r.Actions, r.Recorded, r.Digest)
		}
	case "audits":
		rows, err := idx.RecentAudits(*n)
		if err != nil {
			logger.Fatalf("query audits: %v", err)
		}
		fmt.Printf("%-6s %-10s %-10s %-14s %s\n", "SEQ", "TICK", "ACTOR", "EVENT", "DETAIL")
		for _, r := range rows {
			fmt.Printf("%-6d %-10d %-10s %-14s %s\n", r.Seq, r.Tick, r.Actor, r.Event, r.Detail)
		}
	default:
		logger.Fatalf("unknown command %q (want ticks or audits)", cmd)
	}
}
