// alnqc: a streaming quality filter for long-read alignments in MAG
// refinement pipelines.
// Copyright (c) 2021 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/alnqc/blob/master/LICENSE.txt>.

package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/exascience/alnqc/filter"
	"github.com/exascience/alnqc/sam"
)

// FilterHelp is the help string for this command.
const FilterHelp = "\nfilter parameters:\n" +
	"alnqc filter sam-file sam-output-file\n" +
	"[--min-identity percent]\n" +
	"[--min-coverage percent]\n" +
	"[--min-read-length nr]\n" +
	"[--denominator [match | aligned]]\n" +
	"[--span [strict | lenient]]\n" +
	"[--require-nm]\n" +
	"[--read-ids file]\n" +
	"[--report file]\n" +
	"[--nr-of-threads nr]\n" +
	"[--progress]\n" +
	"[--timed]\n" +
	"[--log path]\n" +
	"[--debug]\n"

// Filter implements the alnqc filter command.
func Filter() (err error) {
	var (
		minIdentity   float64
		minCoverage   float64
		minReadLength int
		denominator   string
		span          string
		requireNM     bool
		readIDsFile   string
		reportFile    string
		nrOfThreads   int
		progress      bool
		timed         bool
		logPath       string
		debug         bool
	)

	var flags flag.FlagSet

	flags.Float64Var(&minIdentity, "min-identity", 95, "minimum percent identity for a record to pass")
	flags.Float64Var(&minCoverage, "min-coverage", 50, "minimum alignment coverage of the read for a record to pass")
	flags.IntVar(&minReadLength, "min-read-length", 0, "minimum read length for a record to pass (0 disables the check)")
	flags.StringVar(&denominator, "denominator", "match", "denominator of the identity formula, one of match or aligned")
	flags.StringVar(&span, "span", "lenient", "whether clips count toward the aligned span, one of strict or lenient")
	flags.BoolVar(&requireNM, "require-nm", false, "discard records without an NM tag instead of assuming edit distance 0")
	flags.StringVar(&readIDsFile, "read-ids", "", "write the sorted, deduplicated query names of passing records to this file")
	flags.StringVar(&reportFile, "report", "", "write one line per evaluated record with the computed values and the decision")
	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of worker threads")
	flags.BoolVar(&progress, "progress", false, "show a progress indicator on standard error")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&logPath, "log", "", "additionally write log output to this file, with rotation")
	flags.BoolVar(&debug, "debug", false, "show debug log output")

	parseFlags(flags, 4, FilterHelp)

	input := getFilename(os.Args[2], FilterHelp)
	output := getFilename(os.Args[3], FilterHelp)

	setLogger(debug, logPath)
	raiseOpenFileLimit()

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", input) {
		sanityChecksFailed = true
	}
	if !checkCreate("", output) {
		sanityChecksFailed = true
	}
	if readIDsFile != "" && !checkCreate("--read-ids", readIDsFile) {
		sanityChecksFailed = true
	}
	if reportFile != "" && !checkCreate("--report", reportFile) {
		sanityChecksFailed = true
	}

	conf := filter.ThresholdConfig{
		MinPercentIdentity:  minIdentity,
		MinCoverage:         minCoverage,
		MinReadLength:       minReadLength,
		RequireEditDistance: requireNM,
	}

	switch denominator {
	case "match":
		conf.Denominator = filter.MatchLength
	case "aligned":
		conf.Denominator = filter.AlignedLength
	default:
		sugar.Errorf("invalid --denominator %v, must be match or aligned", denominator)
		sanityChecksFailed = true
	}

	switch span {
	case "strict":
		conf.Span = sam.StrictSpan
	case "lenient":
		conf.Span = sam.LenientSpan
	default:
		sugar.Errorf("invalid --span %v, must be strict or lenient", span)
		sanityChecksFailed = true
	}

	if err := conf.Validate(); err != nil {
		sugar.Error(err)
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, FilterHelp)
		os.Exit(1)
	}

	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
	}

	sugar.Infow("filtering alignments",
		"input", input,
		"output", output,
		"minIdentity", minIdentity,
		"minCoverage", minCoverage,
		"minReadLength", minReadLength,
		"denominator", denominator,
		"span", span,
		"requireNM", requireNM,
		"threads", runtime.GOMAXPROCS(0),
	)

	in, err := sam.Open(input)
	if err != nil {
		return err
	}
	defer func() {
		nerr := in.Close()
		if err == nil {
			err = nerr
		}
	}()

	out, err := sam.Create(output)
	if err != nil {
		return err
	}
	defer func() {
		nerr := out.Close()
		if err == nil {
			err = nerr
		}
	}()

	var report *sam.OutputFile
	if reportFile != "" {
		if report, err = sam.Create(reportFile); err != nil {
			return err
		}
		defer func() {
			nerr := report.Close()
			if err == nil {
				err = nerr
			}
		}()
	}

	var readIDs *sam.OutputFile
	if readIDsFile != "" {
		if readIDs, err = sam.Create(readIDsFile); err != nil {
			return err
		}
		defer func() {
			nerr := readIDs.Close()
			if err == nil {
				err = nerr
			}
		}()
	}

	ctl := filter.Controller{
		Conf:    conf,
		Threads: runtime.GOMAXPROCS(0),
		Sugar:   sugar,
	}
	if progress {
		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetDescription("evaluating alignments"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)
		ctl.Tick = func() { _ = bar.Add(1) }
	}

	var reportWriter, readIDsWriter io.Writer
	if report != nil {
		reportWriter = report
	}
	if readIDs != nil {
		readIDsWriter = readIDs
	}

	start := time.Now()
	if err = ctl.Run(in, out, reportWriter, readIDsWriter); err != nil {
		return err
	}
	if timed {
		sugar.Infof("total runtime %v", time.Since(start))
	}
	return nil
}
