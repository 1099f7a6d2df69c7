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

// Package sam is a line-oriented model of the SAM file format, as defined
// at http://samtools.github.io/hts-specs/SAMv1.pdf, for filters that must
// forward records byte-for-byte.
//
// Unlike a full SAM codec, parsing an alignment line here never normalizes
// or reformats it: the original line is retained on the Alignment value,
// and only the fields the quality filter reads (QNAME, FLAG, RNAME, POS,
// MAPQ, CIGAR, SEQ, and the optional-field region) are decoded.
package sam
