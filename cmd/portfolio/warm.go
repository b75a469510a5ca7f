package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"
	"github.com/trogers1052/portfolio-tracker/internal/kafka"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

type warmCmd struct {
	symbols string
	start   string
	end     string
	publish bool
}

func (*warmCmd) Name() string     { return "warm" }
func (*warmCmd) Synopsis() string { return "load symbols into the market data cache" }
func (*warmCmd) Usage() string {
	return `portfolio warm -symbols AAPL,MSFT [-start YYYY-MM-DD] [-end YYYY-MM-DD] [-publish]

  Fetches the symbols now, or with -publish sends a WARM_CACHE request to
  the running service through Kafka.
`
}

func (c *warmCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbols, "symbols", "", "comma separated symbols (defaults to WARM_SYMBOLS)")
	f.StringVar(&c.start, "start", "", "first date (defaults to 30 days before end)")
	f.StringVar(&c.end, "end", "", "last date (defaults to today)")
	f.BoolVar(&c.publish, "publish", false, "publish a warm request instead of fetching here")
}

func (c *warmCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	start, end, err := parseRange(c.start, c.end, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	a, err := newApp(ctx, !c.publish)
	if err != nil {
		log.Printf("[ERROR] %v", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	raw := a.cfg.Schedule.WarmSymbols
	if c.symbols != "" {
		raw = strings.Split(c.symbols, ",")
	}
	var tickers []models.Ticker
	for _, s := range raw {
		t, err := models.ParseTicker(s)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		tickers = append(tickers, t)
	}
	if len(tickers) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no symbols to warm")
		return subcommands.ExitUsageError
	}

	if c.publish {
		if len(a.cfg.Kafka.Brokers) == 0 {
			fmt.Fprintln(os.Stderr, "Error: -publish needs KAFKA_BROKERS")
			return subcommands.ExitFailure
		}
		producer := kafka.NewProducer(a.cfg.Kafka.Brokers, a.cfg.Kafka.WarmTopic)
		defer producer.Close()

		req := models.CacheWarmRequest{
			Start: start.Format(models.DateLayout),
			End:   end.Format(models.DateLayout),
		}
		for _, t := range tickers {
			req.Symbols = append(req.Symbols, t.String())
		}
		if err := producer.RequestWarm(ctx, req); err != nil {
			log.Printf("[ERROR] publish warm request: %v", err)
			return subcommands.ExitFailure
		}
		log.Printf("[INFO] published warm request for %d symbols", len(tickers))
		return subcommands.ExitSuccess
	}

	n := a.fetcher.Warm(ctx, tickers, start, end)
	fmt.Printf("warmed %d of %d symbols\n", n, len(tickers))
	return subcommands.ExitSuccess
}
