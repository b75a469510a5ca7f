// Command portfolio serves portfolio snapshots built from cached market data.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	commander.Register(&serveCmd{}, "server")
	commander.Register(&snapshotCmd{}, "portfolio")
	commander.Register(&budgetCmd{}, "market data")
	commander.Register(&warmCmd{}, "market data")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
