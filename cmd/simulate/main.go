/*
main.go - One-shot simulation CLI

PURPOSE:
  Runs a scenario file once and writes the report bundle (CSV tables and
  report.md) to a directory. Nothing is stored.

USAGE:
  simulate -scenario scenario.yaml [-out out/] [-title "March plan"]
           [-log-level debug] [-log-format json]

EXIT CODES:
  0  simulated (violations do not change the exit code)
  1  scenario rejected or output not writable
  2  bad flags
*/
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/warp/obligation-engine/config"
	"github.com/warp/obligation-engine/factory"
	"github.com/warp/obligation-engine/finance"
	"github.com/warp/obligation-engine/generic"
	"github.com/warp/obligation-engine/report"
)

func main() {
	var scenarioPath, title string
	cfg, err := config.Load(os.Args[1:], func(fs *flag.FlagSet) {
		fs.StringVar(&scenarioPath, "scenario", "", "scenario file (.yaml, .yml or .json)")
		fs.StringVar(&title, "title", "", "report title (default: scenario name)")
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "-scenario is required")
		os.Exit(2)
	}
	logger := cfg.NewLogger(os.Stderr)

	if err := run(logger, scenarioPath, cfg.OutputDir, title); err != nil {
		logger.WithError(err).Error("simulation failed")
		os.Exit(1)
	}
}

func run(logger *logrus.Logger, path, outDir, title string) error {
	sj, in, err := factory.NewScenarioFactory().Load(path)
	if err != nil {
		return err
	}

	result, err := finance.NewEngine(logger).Run(in)
	if err != nil {
		return err
	}

	if title == "" {
		title = sj.Name
	}
	files, err := report.WriteBundle(outDir, title, result)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"scenario":   sj.Name,
		"out":        outDir,
		"files":      len(files),
		"violations": len(result.Violations),
		"final_debt": generic.FormatMoney(result.Summary.FinalDebt),
	}).Info("report written")
	return nil
}
