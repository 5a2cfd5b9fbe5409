package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	leosim "github.com/barankorkusuz/omnet-leo"
)

var verbose bool

func init() {
	flag.BoolVar(&verbose, "verbose", false, "log per-packet drops and routing chatter")
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-verbose] <scenario>\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "<scenario> names a TOML file in the working directory (extension optional)")
}

func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
		os.Exit(1)
	}
	name := strings.TrimSuffix(flag.Arg(0), ".toml")
	logger := leosim.SimLogInit(name, verbose)

	sc, err := leosim.LoadScenario(name)
	if err != nil {
		logger.Log("level", "critical", "subsys", "scenario", "error", err)
		os.Exit(1)
	}
	sim, err := sc.Build(logger)
	if err != nil {
		logger.Log("level", "critical", "subsys", "scenario", "error", err)
		os.Exit(1)
	}

	sim.Run()

	results := name + "-results.csv"
	if err := leosim.WriteResultsFile(results, sim); err != nil {
		logger.Log("level", "critical", "subsys", "sim", "error", err)
		os.Exit(1)
	}
	logger.Log("level", "notice", "subsys", "sim", "results", results)
}
