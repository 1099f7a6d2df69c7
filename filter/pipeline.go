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

package filter

import (
	"io"
	"io/ioutil"
	"strconv"

	"github.com/exascience/pargo/pipeline"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/exascience/alnqc/sam"
)

// Batch size bounds for the parallel pipeline.
const (
	minBatchSize = 1024
	maxBatchSize = 65536
)

// A Controller drives one filter run over a SAM stream: header lines are
// forwarded verbatim, data lines are evaluated, passing data lines are
// forwarded and their query names collected. The run is single-pass; a
// cancelled or failed run produces no valid output and must be re-run from
// the beginning.
type Controller struct {
	// The thresholds and formula modes, validated by the caller.
	Conf ThresholdConfig

	// Number of parallel evaluators. Values below 2 select the sequential
	// single-pass baseline. Parallelism never changes the logical outputs:
	// the filtered stream is reassembled in input order, and the read-ID
	// list is sorted at finalization.
	Threads int

	// Operational logging; distinct from the per-record report. May be
	// nil.
	Sugar *zap.SugaredLogger

	// Tick, when non-nil, is called once per evaluated record, for
	// progress reporting. It is always called from a single goroutine.
	Tick func()
}

// runStats counts what happened during one run.
type runStats struct {
	headers   int
	evaluated int
	passed    int
}

// A result is one classified input line: either a header line (aln == nil)
// or an evaluated data line.
type result struct {
	line string
	aln  *sam.Alignment
	dec  Decision
}

// Run consumes the input stream and produces the filtered stream on output,
// one report line per evaluated record on report, and the sorted,
// deduplicated read-ID list on readIDs. report and readIDs may be nil.
// Malformed records are discarded and reported, never fatal; only stream
// I/O errors abort the run.
func (ctl *Controller) Run(input *sam.InputFile, output *sam.OutputFile, report, readIDs io.Writer) error {
	if report == nil {
		report = ioutil.Discard
	}
	collector := NewIDCollector()
	stats := new(runStats)
	var err error
	if ctl.Threads > 1 {
		err = ctl.runParallel(input, output, report, collector, stats)
	} else {
		err = ctl.runSequential(input, output, report, collector, stats)
	}
	if err != nil {
		return err
	}
	if readIDs != nil {
		if err := collector.WriteTo(readIDs); err != nil {
			return err
		}
	}
	if ctl.Sugar != nil {
		ctl.Sugar.Infow("filter run finished",
			"headers", stats.headers,
			"evaluated", stats.evaluated,
			"passed", stats.passed,
			"readIDs", collector.Len(),
		)
	}
	return nil
}

func (ctl *Controller) runSequential(input *sam.InputFile, output *sam.OutputFile, report io.Writer, collector *IDCollector, stats *runStats) error {
	var buf []byte
	for {
		line, err := input.ReadLine()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if buf, err = ctl.emit(ctl.evaluate(line), output, report, collector, stats, buf); err != nil {
			return err
		}
	}
}

func (ctl *Controller) runParallel(input *sam.InputFile, output *sam.OutputFile, report io.Writer, collector *IDCollector, stats *runStats) error {
	var p pipeline.Pipeline
	p.Source(input)
	p.SetVariableBatchSize(minBatchSize, maxBatchSize)
	var buf []byte
	p.Add(
		pipeline.LimitedPar(ctl.Threads, pipeline.Receive(func(_ int, data interface{}) interface{} {
			lines := data.([]string)
			results := make([]result, len(lines))
			for i, line := range lines {
				results[i] = ctl.evaluate(line)
			}
			return results
		})),
		pipeline.StrictOrd(pipeline.Receive(func(_ int, data interface{}) interface{} {
			var err error
			for _, r := range data.([]result) {
				if buf, err = ctl.emit(r, output, report, collector, stats, buf); err != nil {
					p.SetErr(err)
					break
				}
			}
			return data
		})),
	)
	p.Run()
	return p.Err()
}

// evaluate classifies one input line. It is safe to call from concurrent
// pipeline nodes. A line that fails to parse is still reported, with the
// fields that could be recovered.
func (ctl *Controller) evaluate(line string) result {
	if sam.IsHeaderLine(line) {
		return result{line: line}
	}
	aln, err := sam.ParseAlignment(line)
	if err != nil {
		return result{line: line, aln: aln, dec: Decision{Reason: InvalidAlignment}}
	}
	return result{line: line, aln: aln, dec: ctl.Conf.Evaluate(aln)}
}

// emit performs the write side of one classified line. It must be called
// from a single goroutine, in input order.
func (ctl *Controller) emit(r result, output *sam.OutputFile, report io.Writer, collector *IDCollector, stats *runStats, buf []byte) ([]byte, error) {
	if r.aln == nil {
		stats.headers++
		return buf, output.WriteLine(r.line)
	}
	stats.evaluated++
	buf = appendReportLine(buf[:0], r.aln, r.dec)
	if _, err := report.Write(buf); err != nil {
		return buf, errors.Wrap(err, "writing filter report")
	}
	if ctl.Tick != nil {
		ctl.Tick()
	}
	if r.dec.Pass {
		stats.passed++
		if err := output.WriteLine(r.line); err != nil {
			return buf, err
		}
		collector.Add(r.aln.QNAME)
	}
	return buf, nil
}

// appendReportLine formats one report line: query name, read length, CIGAR,
// percent identity, coverage, and the decision.
func appendReportLine(buf []byte, aln *sam.Alignment, dec Decision) []byte {
	qname := aln.QNAME
	if qname == "" {
		qname = "*"
	}
	cigar := aln.CIGAR
	if cigar == "" {
		cigar = "*"
	}
	buf = append(append(buf, qname...), '\t')
	buf = append(strconv.AppendInt(buf, int64(dec.ReadLength), 10), '\t')
	buf = append(append(buf, cigar...), '\t')
	buf = append(strconv.AppendFloat(buf, dec.PercentIdentity, 'f', 2, 64), '\t')
	buf = append(strconv.AppendFloat(buf, dec.Coverage, 'f', 2, 64), '\t')
	if dec.Pass {
		buf = append(buf, "pass"...)
	} else {
		buf = append(buf, dec.Reason.String()...)
	}
	return append(buf, '\n')
}
