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

package sam

import (
	"strconv"

	"github.com/willf/bitset"
)

// CigarOperations lists the operator characters that may occur in a CIGAR
// string.
const CigarOperations = "MIDNSHP=X"

var (
	cigarValidOperators = bitset.New(256)

	// M, = and X consume both query and reference bases.
	cigarMatchOperators = bitset.New(256)

	// H and S are clips; whether they count toward the aligned span is a
	// policy decision, see SpanPolicy.
	cigarClipOperators = bitset.New(256)
)

func init() {
	for _, c := range CigarOperations {
		cigarValidOperators.Set(uint(c))
	}
	for _, c := range "M=X" {
		cigarMatchOperators.Set(uint(c))
	}
	for _, c := range "SH" {
		cigarClipOperators.Set(uint(c))
	}
}

func isDigit(char byte) bool { return ('0' <= char) && (char <= '9') }

// A CigarOperation is a single (length, operator) token of a CIGAR string.
type CigarOperation struct {
	Length    int32
	Operation byte
}

// A CigarScanner scans a CIGAR string from left to right, producing one
// CigarOperation per call to Next. Reset makes the scanner restartable, so
// one scanner value can serve a whole stream of records.
//
// The zero CigarScanner is valid and empty.
type CigarScanner struct {
	index int
	data  string
}

// Reset initializes the scanner with the given CIGAR string.
func (sc *CigarScanner) Reset(cigar string) {
	sc.index = 0
	sc.data = cigar
}

// Next consumes the longest leading run of digits as the length and the
// following character as the operator. It returns false when no digits
// remain, including for "*" and for malformed tails, which end the scan
// rather than fail it: an unparsable CIGAR simply contributes no tokens.
func (sc *CigarScanner) Next() (op CigarOperation, ok bool) {
	start := sc.index
	end := start
	for end < len(sc.data) && isDigit(sc.data[end]) {
		end++
	}
	if end == start || end == len(sc.data) {
		sc.index = len(sc.data)
		return CigarOperation{}, false
	}
	operator := sc.data[end]
	if !cigarValidOperators.Test(uint(operator)) {
		sc.index = len(sc.data)
		return CigarOperation{}, false
	}
	length, err := strconv.ParseInt(sc.data[start:end], 10, 32)
	if err != nil {
		sc.index = len(sc.data)
		return CigarOperation{}, false
	}
	sc.index = end + 1
	return CigarOperation{Length: int32(length), Operation: operator}, true
}

// A SpanPolicy decides which CIGAR operators count toward the total aligned
// span of a record. The two historical filter variants disagree on whether
// clipped bases count; both behaviors are preserved so either legacy output
// can be reproduced exactly.
type SpanPolicy int

const (
	// StrictSpan excludes hard and soft clips from the aligned span; only
	// match, indel, skip and pad operations count.
	StrictSpan SpanPolicy = iota

	// LenientSpan counts every operator, clips included.
	LenientSpan
)

// CigarLengths scans cigar once and returns the total match length (the
// summed lengths of M, = and X operations) and the total aligned span under
// the given policy. An empty or fully unparsable CIGAR yields (0, 0).
func CigarLengths(cigar string, policy SpanPolicy) (matchLength, alignedLength int32) {
	var sc CigarScanner
	sc.Reset(cigar)
	for op, ok := sc.Next(); ok; op, ok = sc.Next() {
		if cigarMatchOperators.Test(uint(op.Operation)) {
			matchLength += op.Length
		}
		if policy == LenientSpan || !cigarClipOperators.Test(uint(op.Operation)) {
			alignedLength += op.Length
		}
	}
	return matchLength, alignedLength
}
