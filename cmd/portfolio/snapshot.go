package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	"github.com/trogers1052/portfolio-tracker/internal/holdings"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

type snapshotCmd struct {
	csvPath string
	start   string
	end     string
	asJSON  bool
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "compute a portfolio snapshot from a holdings CSV" }
func (*snapshotCmd) Usage() string {
	return `portfolio snapshot -csv <file> [-start YYYY-MM-DD] [-end YYYY-MM-DD] [-json]

  Values the holdings over the date range. Use -csv - to read stdin.
`
}

func (c *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.csvPath, "csv", "", "holdings CSV with symbol and shares columns")
	f.StringVar(&c.start, "start", "", "first date (defaults to 30 days before end)")
	f.StringVar(&c.end, "end", "", "last date (defaults to today)")
	f.BoolVar(&c.asJSON, "json", false, "print the snapshot as JSON")
}

func (c *snapshotCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.csvPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -csv is required")
		return subcommands.ExitUsageError
	}
	start, end, err := parseRange(c.start, c.end, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	held, err := readHoldings(c.csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	a, err := newApp(ctx, false)
	if err != nil {
		log.Printf("[ERROR] %v", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	snap, err := a.aggregator.Aggregate(ctx, held, start, end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}
	printSnapshot(os.Stdout, snap)
	return subcommands.ExitSuccess
}

func readHoldings(path string) ([]models.Holding, error) {
	if path == "-" {
		return holdings.ParseCSV(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open holdings: %w", err)
	}
	defer f.Close()
	return holdings.ParseCSV(f)
}

// parseRange resolves optional YYYY-MM-DD bounds against now
func parseRange(startStr, endStr string, now time.Time) (time.Time, time.Time, error) {
	end := models.Day(now)
	if endStr != "" {
		d, err := models.ParseDate(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -end %q", endStr)
		}
		end = d
	}
	start := end.AddDate(0, 0, -30)
	if startStr != "" {
		d, err := models.ParseDate(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -start %q", startStr)
		}
		start = d
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end %s is before start %s", end.Format(models.DateLayout), start.Format(models.DateLayout))
	}
	return start, end, nil
}

func printSnapshot(out io.Writer, s *models.PortfolioSnapshot) {
	fmt.Fprintf(out, "Portfolio %s to %s\n", s.Start.Format(models.DateLayout), s.End.Format(models.DateLayout))
	fmt.Fprintf(out, "Total value: %s\n\n", s.TotalValue.StringFixed(2))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Symbol\tShares\tClose\tValue\tWeight %\tReturn\tSector\t")
	for _, p := range s.Positions {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t\n",
			p.Ticker, p.Shares, p.LatestClose.StringFixed(2), p.Value.StringFixed(2),
			p.Weight.StringFixed(2), p.TotalReturn.StringFixed(4), p.Sector)
	}
	w.Flush()

	fmt.Fprintln(out)
	for _, a := range s.SectorAllocation {
		fmt.Fprintf(out, "  %-24s %6s%%\n", a.Name, a.Percent.StringFixed(2))
	}

	m := s.Metrics
	fmt.Fprintf(out, "\nReturn %s  Volatility %s  Max drawdown %s  Trading days %d\n",
		m.TotalReturn.StringFixed(4), m.Volatility.StringFixed(4), m.MaxDrawdown.StringFixed(4), m.TradingDays)

	if len(s.StaleTickers) > 0 {
		fmt.Fprintf(out, "Stale data for: %v\n", s.StaleTickers)
	}
	if len(s.PartialDates) > 0 {
		fmt.Fprintf(out, "%d dates are missing at least one holding\n", len(s.PartialDates))
	}
	fmt.Fprintf(out, "Provider calls left today: %d\n", s.RateBudgetRemaining)
}
