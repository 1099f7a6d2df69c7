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
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/exascience/alnqc/sam"
)

func samLine(qname string, flag int, cigar, seq string, tags ...string) string {
	fields := []string{
		qname, strconv.Itoa(flag), "ctg1", "100", "60", cigar,
		"*", "0", "0", seq, "*",
	}
	return strings.Join(append(fields, tags...), "\t")
}

func mustParse(t *testing.T, line string) *sam.Alignment {
	t.Helper()
	aln, err := sam.ParseAlignment(line)
	if err != nil {
		t.Fatal(err)
	}
	return aln
}

func approx(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

func TestEvaluatePerfectMatch(t *testing.T) {
	conf := ThresholdConfig{MinPercentIdentity: 95, MinCoverage: 50}
	aln := mustParse(t, samLine("read1", 0, "50M", strings.Repeat("A", 50), "NM:i:2"))
	dec := conf.Evaluate(aln)
	if !dec.Pass {
		t.Fatalf("expected pass, got %v", dec.Reason)
	}
	if dec.MatchLength != 50 || dec.AlignedLength != 50 || dec.ReadLength != 50 {
		t.Errorf("lengths: got %v/%v/%v", dec.MatchLength, dec.AlignedLength, dec.ReadLength)
	}
	if !approx(dec.PercentIdentity, 96) {
		t.Errorf("percent identity: got %v, want 96", dec.PercentIdentity)
	}
	if !approx(dec.Coverage, 100) {
		t.Errorf("coverage: got %v, want 100", dec.Coverage)
	}
}

func TestEvaluateStrictSpanAlignedDenominator(t *testing.T) {
	conf := ThresholdConfig{
		MinPercentIdentity: 70,
		MinCoverage:        50,
		Denominator:        AlignedLength,
		Span:               sam.StrictSpan,
	}
	// 10S+40M+5I consume 55 read bases
	aln := mustParse(t, samLine("read1", 0, "10S40M5I5D", strings.Repeat("A", 55), "NM:i:3"))
	dec := conf.Evaluate(aln)
	if dec.MatchLength != 40 || dec.AlignedLength != 50 {
		t.Errorf("lengths: got %v/%v, want 40/50", dec.MatchLength, dec.AlignedLength)
	}
	if !approx(dec.PercentIdentity, 74) {
		t.Errorf("percent identity: got %v, want 74", dec.PercentIdentity)
	}
	if !approx(dec.Coverage, 50.0/55*100) {
		t.Errorf("coverage: got %v", dec.Coverage)
	}
	if !dec.Pass {
		t.Errorf("expected pass, got %v", dec.Reason)
	}
}

func TestEvaluateFullyClipped(t *testing.T) {
	// a fully clipped read is invalid regardless of thresholds
	for _, conf := range []ThresholdConfig{
		{},
		{Span: sam.LenientSpan},
		{MinPercentIdentity: 100, MinCoverage: 100},
	} {
		aln := mustParse(t, samLine("read1", 0, "100S", strings.Repeat("A", 100)))
		dec := conf.Evaluate(aln)
		if dec.Pass || dec.Reason != InvalidAlignment {
			t.Errorf("fully clipped read: got %v, want invalid_alignment", dec.Reason)
		}
	}
}

func TestEvaluateGuards(t *testing.T) {
	conf := ThresholdConfig{}

	// absent sequence
	aln := mustParse(t, samLine("read1", 0, "50M", "*"))
	if dec := conf.Evaluate(aln); dec.Reason != InvalidAlignment {
		t.Errorf("absent sequence: got %v", dec.Reason)
	}

	// unparsable CIGAR
	aln = mustParse(t, samLine("read1", 0, "*", strings.Repeat("A", 50)))
	if dec := conf.Evaluate(aln); dec.Reason != InvalidAlignment {
		t.Errorf("unparsable CIGAR: got %v", dec.Reason)
	}
}

func TestEvaluateEditDistancePolicy(t *testing.T) {
	line := samLine("read1", 0, "50M", strings.Repeat("A", 50))

	// missing NM defaults to 0 when not required
	conf := ThresholdConfig{MinPercentIdentity: 100}
	if dec := conf.Evaluate(mustParse(t, line)); !dec.Pass || !approx(dec.PercentIdentity, 100) {
		t.Errorf("missing NM not treated as 0: %+v", dec)
	}

	// missing NM discards when required
	conf.RequireEditDistance = true
	if dec := conf.Evaluate(mustParse(t, line)); dec.Reason != InvalidAlignment {
		t.Errorf("missing required NM: got %v", dec.Reason)
	}
}

func TestEvaluateClamp(t *testing.T) {
	// CIGAR claims more matches than the sequence holds
	conf := ThresholdConfig{}
	aln := mustParse(t, samLine("read1", 0, "60M", strings.Repeat("A", 50)))
	dec := conf.Evaluate(aln)
	if dec.MatchLength != 50 {
		t.Errorf("match length not clamped: got %v", dec.MatchLength)
	}
	if dec.MatchLength > int32(dec.ReadLength) {
		t.Error("post-clamp match length exceeds read length")
	}
	if math.IsNaN(dec.PercentIdentity) || math.IsInf(dec.PercentIdentity, 0) || dec.PercentIdentity < 0 {
		t.Errorf("percent identity not a finite non-negative number: %v", dec.PercentIdentity)
	}
	if math.IsNaN(dec.Coverage) || math.IsInf(dec.Coverage, 0) || dec.Coverage < 0 {
		t.Errorf("coverage not a finite non-negative number: %v", dec.Coverage)
	}
}

func TestEvaluateEditDistanceExceedsMatchLength(t *testing.T) {
	// NM counts indel bases, so indel-heavy records can carry an edit
	// distance larger than the match length
	conf := ThresholdConfig{MinPercentIdentity: 95, MinCoverage: 50}
	for _, line := range []string{
		samLine("read1", 0, "10M", strings.Repeat("A", 10), "NM:i:50"),
		samLine("read2", 0, "10M90D", strings.Repeat("A", 10), "NM:i:95"),
	} {
		dec := conf.Evaluate(mustParse(t, line))
		if dec.Pass || dec.Reason != BelowIdentity {
			t.Errorf("high edit distance: got %v, want below_identity", dec.Reason)
		}
		if !approx(dec.PercentIdentity, 0) {
			t.Errorf("percent identity: got %v, want 0", dec.PercentIdentity)
		}
		if dec.PercentIdentity < 0 {
			t.Error("percent identity is negative")
		}
	}
}

func TestEvaluateThresholdOrder(t *testing.T) {
	// a short read is reported too_short even when it also fails identity
	conf := ThresholdConfig{MinPercentIdentity: 99, MinCoverage: 50, MinReadLength: 2000}
	aln := mustParse(t, samLine("read1", 0, "100M", strings.Repeat("A", 100), "NM:i:50"))
	if dec := conf.Evaluate(aln); dec.Reason != TooShort {
		t.Errorf("short read: got %v, want too_short", dec.Reason)
	}

	conf.MinReadLength = 0
	if dec := conf.Evaluate(aln); dec.Reason != BelowIdentity {
		t.Errorf("low identity read: got %v, want below_identity", dec.Reason)
	}

	conf.MinPercentIdentity = 0
	conf.MinCoverage = 100
	aln = mustParse(t, samLine("read1", 0, "50M50S", strings.Repeat("A", 100)))
	if dec := conf.Evaluate(aln); dec.Reason != BelowCoverage {
		t.Errorf("low coverage read: got %v, want below_coverage", dec.Reason)
	}
}

func TestValidate(t *testing.T) {
	valid := ThresholdConfig{MinPercentIdentity: 95, MinCoverage: 50, MinReadLength: 2000}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
	for _, conf := range []ThresholdConfig{
		{MinPercentIdentity: -1},
		{MinPercentIdentity: 101},
		{MinCoverage: -0.5},
		{MinCoverage: 100.5},
		{MinReadLength: -1},
	} {
		if err := conf.Validate(); err == nil {
			t.Errorf("invalid config accepted: %+v", conf)
		}
	}
}
