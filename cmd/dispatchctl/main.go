// Command dispatchctl evaluates a snapshot file offline and prints the result as JSON.
//
//	dispatchctl -snapshot day.json [-date 2025-03-10,2025-03-11] [-config tuning.yaml] [-technician t1] [-summary]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"techdispatch/internal/config"
	"techdispatch/internal/model"
	"techdispatch/internal/opt"
	"techdispatch/internal/summary"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "dispatchctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("dispatchctl", flag.ContinueOnError)
	snapPath := fs.String("snapshot", "", "snapshot JSON file (required)")
	dates := fs.String("date", "", "comma-separated dates to evaluate; defaults to the snapshot date")
	cfgPath := fs.String("config", "", "YAML engine tuning file")
	tech := fs.String("technician", "", "narrow output to one technician")
	withSummary := fs.Bool("summary", false, "attach a template summary")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *snapPath == "" {
		fs.Usage()
		return fmt.Errorf("-snapshot is required")
	}

	cfg, err := config.LoadEngineConfig(*cfgPath)
	if err != nil {
		return err
	}
	b, err := os.ReadFile(*snapPath)
	if err != nil {
		return err
	}
	var base model.Snapshot
	if err := json.Unmarshal(b, &base); err != nil {
		return fmt.Errorf("parse %s: %w", *snapPath, err)
	}

	snaps := []model.Snapshot{base}
	if *dates != "" {
		snaps = snaps[:0]
		for _, d := range strings.Split(*dates, ",") {
			d = strings.TrimSpace(d)
			if model.NormalizeDate(d) == "" {
				return fmt.Errorf("invalid date %q", d)
			}
			s := base
			s.Date = d
			snaps = append(snaps, s)
		}
	}

	var sum opt.Summarizer
	if *withSummary {
		sum = summary.Template{}
	}
	evs, err := opt.NewEngine(cfg, sum).EvaluateMany(ctx, snaps)
	if err != nil {
		return err
	}
	if *tech != "" {
		for i := range evs {
			evs[i] = opt.ForTechnician(evs[i], strings.ToLower(strings.TrimSpace(*tech)))
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if len(evs) == 1 {
		return enc.Encode(evs[0])
	}
	return enc.Encode(evs)
}
