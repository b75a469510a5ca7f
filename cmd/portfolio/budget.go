package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/google/subcommands"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

type budgetCmd struct{}

func (*budgetCmd) Name() string     { return "budget" }
func (*budgetCmd) Synopsis() string { return "show today's provider call budget" }
func (*budgetCmd) Usage() string {
	return `portfolio budget
`
}

func (*budgetCmd) SetFlags(*flag.FlagSet) {}

func (*budgetCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	a, err := newApp(ctx, false)
	if err != nil {
		log.Printf("[ERROR] %v", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	b := a.budget.Snapshot(ctx)
	fmt.Printf("%s: %d of %d calls used, %d remaining\n",
		b.Day.Format(models.DateLayout), b.CallsUsed, b.CallsAllowed, b.Remaining())
	return subcommands.ExitSuccess
}
