package main

import (
	"flag"
	"log"
	"os"
	"time"

	"idscan/internal/config"
	"idscan/internal/export"
	"idscan/internal/session"
)

// Dumps the persisted session to CSV without the scanner daemon running.
func main() {
	out := flag.String("o", "", "output file (default: derived from slot and date)")
	stdout := flag.Bool("stdout", false, "write CSV to stdout")
	flag.Parse()

	cfg := config.Load()
	store, err := session.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open session db: %v", err)
	}
	defer store.Close()

	sess := store.Snapshot()
	data, err := export.CSV(sess)
	if err != nil {
		log.Fatalf("export: %v", err)
	}

	if *stdout {
		os.Stdout.Write(data)
		return
	}

	name := *out
	if name == "" {
		name = export.Filename(sess.SlotName, time.Now())
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		log.Fatalf("write %s: %v", name, err)
	}
	log.Printf("wrote %d record(s) to %s", len(sess.Records), name)
}
