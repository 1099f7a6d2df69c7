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
	"strings"

	hts "github.com/biogo/hts/sam"
)

// HeaderMarker starts every line of the header section in a SAM file.
const HeaderMarker = '@'

// IsHeaderLine returns true if line belongs to the header section. Header
// lines are forwarded verbatim by filters and never parsed as alignments.
func IsHeaderLine(line string) bool {
	return len(line) > 0 && line[0] == HeaderMarker
}

// An Alignment represents a single alignment line in a SAM file. The
// original line is retained in Line so that a filter can forward it without
// reformatting; the parsed fields are never written back.
//
// Alignments are immutable once parsed.
type Alignment struct {
	// The original alignment line, without the line terminator.
	Line string

	// The query template name.
	QNAME string

	// The bitwise flag.
	FLAG hts.Flags

	// The reference sequence name.
	RNAME string

	// The 1-based leftmost mapping position.
	POS int32

	// The mapping quality.
	MAPQ byte

	// The CIGAR string.
	CIGAR string

	// The segment sequence, or "*" when absent.
	SEQ string

	// The optional-field region of the line (fields 12 and up), still in
	// TAG:TYPE:VALUE form. Scanned on demand, see EditDistance.
	tags string
}

func (aln *Alignment) IsUnmapped() bool      { return aln.FLAG&hts.Unmapped != 0 }
func (aln *Alignment) IsSecondary() bool     { return aln.FLAG&hts.Secondary != 0 }
func (aln *Alignment) IsSupplementary() bool { return aln.FLAG&hts.Supplementary != 0 }

// ReadLength returns the length of the segment sequence, or 0 when the
// sequence is not stored in the record.
func (aln *Alignment) ReadLength() int {
	if aln.SEQ == "" || aln.SEQ == "*" {
		return 0
	}
	return len(aln.SEQ)
}

const nmPrefix = "NM:i:"

// EditDistance returns the value of the NM optional field, the edit
// distance of the read to the reference. The second return value is false
// when the tag is absent or its value is not an integer; whether that
// discards the record is the quality filter's call, not the parser's.
func (aln *Alignment) EditDistance() (nm int, ok bool) {
	tags := aln.tags
	for len(tags) > 0 {
		field := tags
		if i := strings.IndexByte(tags, '\t'); i >= 0 {
			field, tags = tags[:i], tags[i+1:]
		} else {
			tags = ""
		}
		if strings.HasPrefix(field, nmPrefix) {
			value, err := strconv.Atoi(field[len(nmPrefix):])
			if err != nil {
				return 0, false
			}
			return value, true
		}
	}
	return 0, false
}

// ParseAlignment parses one alignment line. The returned Alignment retains
// the original line. On error, the fields parsed up to that point are
// filled in, so that a caller can still report the record.
func ParseAlignment(line string) (*Alignment, error) {
	var sc StringScanner
	sc.Reset(line)
	aln := &Alignment{Line: line}
	aln.QNAME = sc.doString()
	aln.FLAG = hts.Flags(sc.doUint(16))
	aln.RNAME = sc.doString()
	aln.POS = sc.doInt32()
	aln.MAPQ = byte(sc.doUint(8))
	aln.CIGAR = sc.doString()
	sc.doString() // RNEXT
	sc.doInt32()  // PNEXT
	sc.doInt32()  // TLEN
	aln.SEQ = sc.doString()
	// QUAL is the last mandatory field; everything after it is the
	// optional-field region.
	_, _ = sc.readUntil('\t')
	aln.tags = sc.Rest()
	return aln, sc.Err()
}
