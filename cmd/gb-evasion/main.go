package main

import (
	"GuardBench/internal/evasion"
	"flag"
	"path/filepath"

	"github.com/charmbracelet/log"
)

func main() {
	configuration := flag.String("configuration", "", "name of the evasion run directory under basedir")
	extra := flag.String("extra", "", "suffix appended to the output file name")
	flag.Parse()

	if *configuration == "" {
		log.Fatal("Missing required flag -configuration")
	}
	if flag.NArg() != 1 {
		log.Fatal("Usage: gb-evasion -configuration <name> [-extra <suffix>] <basedir>")
	}
	basedir := flag.Arg(0)

	summaries, err := evasion.Aggregate(basedir, *configuration)
	if err != nil {
		log.Fatalf("Failed to aggregate evasion results: %v", err)
	}
	log.Info("Aggregated evasion results", "summaries", len(summaries))

	out := filepath.Join(basedir, evasion.SummaryFileName(*configuration, *extra))
	if err := evasion.WriteSummaries(out, summaries); err != nil {
		log.Fatalf("Failed to write summaries: %v", err)
	}
	log.Info("Wrote evasion summary", "file", out)
}
