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

// Package filter implements the streaming alignment-quality filter: per
// alignment record it decides whether the read is trustworthy evidence for
// the reference it maps to, forwards the records that pass, and collects
// the identifiers of the passing reads.
package filter

import (
	"github.com/pkg/errors"

	"github.com/exascience/alnqc/sam"
)

// A DenominatorMode selects the denominator of the percent-identity
// formula. The two historical filter variants disagree here as well; both
// are preserved, see sam.SpanPolicy.
type DenominatorMode int

const (
	// MatchLength divides by the summed M/=/X lengths.
	MatchLength DenominatorMode = iota

	// AlignedLength divides by the total aligned span.
	AlignedLength
)

// A ThresholdConfig holds the quality thresholds and formula modes for one
// filter run. It is constructed once, validated before any record is read,
// and never modified afterwards.
type ThresholdConfig struct {
	// Minimum percent identity in [0,100] for a record to pass.
	MinPercentIdentity float64

	// Minimum alignment coverage of the read in [0,100] for a record to
	// pass.
	MinCoverage float64

	// Minimum read length for a record to pass; 0 disables the check.
	MinReadLength int

	// Denominator of the percent-identity formula.
	Denominator DenominatorMode

	// Which CIGAR operators count toward the aligned span.
	Span sam.SpanPolicy

	// When set, records without an NM tag are discarded instead of
	// treating the edit distance as 0.
	RequireEditDistance bool
}

// Validate reports configuration errors. It must pass before a run starts;
// per-record problems never surface here.
func (conf ThresholdConfig) Validate() error {
	if conf.MinPercentIdentity < 0 || conf.MinPercentIdentity > 100 {
		return errors.Errorf("minimum percent identity %v outside [0,100]", conf.MinPercentIdentity)
	}
	if conf.MinCoverage < 0 || conf.MinCoverage > 100 {
		return errors.Errorf("minimum coverage %v outside [0,100]", conf.MinCoverage)
	}
	if conf.MinReadLength < 0 {
		return errors.Errorf("minimum read length %v is negative", conf.MinReadLength)
	}
	return nil
}

// A Reason explains why a record was discarded.
type Reason int

const (
	// None marks a passing record.
	None Reason = iota

	// InvalidAlignment marks records with no aligned bases, no stored
	// sequence, or a missing required NM tag.
	InvalidAlignment

	// BelowIdentity marks records below the identity threshold.
	BelowIdentity

	// BelowCoverage marks records below the coverage threshold.
	BelowCoverage

	// TooShort marks reads below the minimum read length.
	TooShort
)

func (r Reason) String() string {
	switch r {
	case InvalidAlignment:
		return "invalid_alignment"
	case BelowIdentity:
		return "below_identity"
	case BelowCoverage:
		return "below_coverage"
	case TooShort:
		return "too_short"
	default:
		return "pass"
	}
}

// A Decision is the outcome of evaluating one record, together with the
// values it was computed from. Every evaluated record produces one report
// line carrying these values, pass or discard.
type Decision struct {
	Pass   bool
	Reason Reason

	// Match length after clamping to the read length.
	MatchLength int32

	// Aligned span under the configured span policy.
	AlignedLength int32

	ReadLength      int
	PercentIdentity float64
	Coverage        float64
}

// Evaluate decides whether aln passes the thresholds. It is a pure function
// of the record and the configuration, so records can be evaluated
// independently and in parallel.
func (conf ThresholdConfig) Evaluate(aln *sam.Alignment) Decision {
	matchLength, alignedLength := sam.CigarLengths(aln.CIGAR, conf.Span)
	readLength := aln.ReadLength()
	dec := Decision{
		MatchLength:   matchLength,
		AlignedLength: alignedLength,
		ReadLength:    readLength,
	}

	nm, hasNM := aln.EditDistance()
	if matchLength == 0 || readLength <= 0 || alignedLength == 0 ||
		(conf.RequireEditDistance && !hasNM) {
		dec.Reason = InvalidAlignment
		return dec
	}
	if !hasNM {
		nm = 0
	}
	if matchLength > int32(readLength) {
		matchLength = int32(readLength)
		dec.MatchLength = matchLength
	}

	denominator := matchLength
	if conf.Denominator == AlignedLength {
		denominator = alignedLength
	}
	// NM counts indel bases too, so it can exceed the match length; the
	// identity numerator is floored at 0.
	mismatches := int32(nm)
	if mismatches > matchLength {
		mismatches = matchLength
	}
	// The guard clause above rules out a zero denominator in both modes.
	dec.PercentIdentity = float64(matchLength-mismatches) / float64(denominator) * 100
	dec.Coverage = float64(denominator) / float64(readLength) * 100

	switch {
	case conf.MinReadLength > 0 && readLength < conf.MinReadLength:
		dec.Reason = TooShort
	case dec.PercentIdentity < conf.MinPercentIdentity:
		dec.Reason = BelowIdentity
	case dec.Coverage < conf.MinCoverage:
		dec.Reason = BelowCoverage
	default:
		dec.Pass = true
	}
	return dec
}
