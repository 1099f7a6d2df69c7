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
	"bufio"
	"compress/gzip"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/pkg/errors"
)

// SAM file extensions.
const (
	SamExt  = ".sam"
	BamExt  = ".bam"
	CramExt = ".cram"
	GzExt   = ".gz"
)

type (
	// An InputFile represents a SAM stream for input: a plain or
	// gzip-compressed text file, standard input, or a BAM/CRAM file read
	// through a samtools child process.
	//
	// InputFile implements the pargo pipeline.Source interface over
	// batches of raw lines, for use by the parallel filter pipeline.
	InputFile struct {
		name string
		rc   io.ReadCloser
		gz   *gzip.Reader
		*bufio.Reader
		cmd   *exec.Cmd
		batch []string
		err   error
	}

	// An OutputFile represents a SAM stream for output, with the same
	// format choices as InputFile.
	OutputFile struct {
		name string
		wc   io.WriteCloser
		gz   *gzip.Writer
		*bufio.Writer
		cmd *exec.Cmd
	}
)

// NewInput returns an InputFile that reads from r. Used for inputs that are
// not files.
func NewInput(r io.Reader) *InputFile {
	return &InputFile{name: "<stream>", Reader: bufio.NewReader(r)}
}

// NewOutput returns an OutputFile that writes to w. Used for outputs that
// are not files.
func NewOutput(w io.Writer) *OutputFile {
	return &OutputFile{name: "<stream>", Writer: bufio.NewWriter(w)}
}

// Open opens a SAM stream for input. "-" and "/dev/stdin" select standard
// input. Files ending in .bam or .cram are converted to SAM text by a
// samtools child process, like the elPrep toolchain does; files ending in
// .gz are decompressed on the fly.
func Open(name string) (*InputFile, error) {
	switch filepath.Ext(name) {
	case BamExt, CramExt:
		if _, err := os.Stat(name); err != nil {
			return nil, errors.Wrapf(err, "opening %v", name)
		}
		args := []string{"view", "-h", "-@", strconv.FormatInt(int64(runtime.GOMAXPROCS(0)), 10), name}
		cmd := exec.Command("samtools", args...)
		outPipe, err := cmd.StdoutPipe()
		if err != nil {
			return nil, errors.Wrapf(err, "opening %v", name)
		}
		if err := cmd.Start(); err != nil {
			return nil, errors.Wrapf(err, "starting samtools for %v", name)
		}
		return &InputFile{name: name, rc: outPipe, Reader: bufio.NewReader(outPipe), cmd: cmd}, nil
	case GzExt:
		file, err := os.Open(name)
		if err != nil {
			return nil, errors.Wrapf(err, "opening %v", name)
		}
		gz, err := gzip.NewReader(file)
		if err != nil {
			_ = file.Close()
			return nil, errors.Wrapf(err, "opening %v", name)
		}
		return &InputFile{name: name, rc: file, gz: gz, Reader: bufio.NewReader(gz)}, nil
	default:
		if name == "-" || name == "/dev/stdin" {
			return &InputFile{name: name, Reader: bufio.NewReader(os.Stdin)}, nil
		}
		file, err := os.Open(name)
		if err != nil {
			return nil, errors.Wrapf(err, "opening %v", name)
		}
		return &InputFile{name: name, rc: file, Reader: bufio.NewReader(file)}, nil
	}
}

// Create opens a SAM stream for output. "-" and "/dev/stdout" select
// standard output. Files ending in .bam are compressed by a samtools child
// process; files ending in .gz are gzip-compressed. CRAM output needs a
// reference and is not supported.
func Create(name string) (*OutputFile, error) {
	switch filepath.Ext(name) {
	case BamExt:
		args := []string{"view", "-Sb", "-@", strconv.FormatInt(int64(runtime.GOMAXPROCS(0)), 10), "-o", name, "-"}
		cmd := exec.Command("samtools", args...)
		inPipe, err := cmd.StdinPipe()
		if err != nil {
			return nil, errors.Wrapf(err, "creating %v", name)
		}
		if err := cmd.Start(); err != nil {
			return nil, errors.Wrapf(err, "starting samtools for %v", name)
		}
		return &OutputFile{name: name, wc: inPipe, Writer: bufio.NewWriter(inPipe), cmd: cmd}, nil
	case CramExt:
		return nil, errors.Errorf("creating %v: CRAM output is not supported", name)
	case GzExt:
		file, err := os.Create(name)
		if err != nil {
			return nil, errors.Wrapf(err, "creating %v", name)
		}
		gz := gzip.NewWriter(file)
		return &OutputFile{name: name, wc: file, gz: gz, Writer: bufio.NewWriter(gz)}, nil
	default:
		if name == "-" || name == "/dev/stdout" {
			return &OutputFile{name: name, Writer: bufio.NewWriter(os.Stdout)}, nil
		}
		file, err := os.Create(name)
		if err != nil {
			return nil, errors.Wrapf(err, "creating %v", name)
		}
		return &OutputFile{name: name, wc: file, Writer: bufio.NewWriter(file)}, nil
	}
}

// ReadLine returns the next line of the stream without its line terminator.
// At the end of the stream it returns io.EOF.
func (f *InputFile) ReadLine() (string, error) {
	line, err := f.Reader.ReadString('\n')
	switch err {
	case nil:
		line = line[:len(line)-1]
	case io.EOF:
		if line == "" {
			return "", io.EOF
		}
	default:
		return "", errors.Wrapf(err, "reading %v", f.name)
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, nil
}

// Close closes the input stream and waits for the samtools child process,
// if any.
func (f *InputFile) Close() error {
	if f.gz != nil {
		if err := f.gz.Close(); err != nil {
			return errors.Wrapf(err, "closing %v", f.name)
		}
	}
	if f.rc != nil {
		if err := f.rc.Close(); err != nil {
			return errors.Wrapf(err, "closing %v", f.name)
		}
	}
	if f.cmd != nil {
		if err := f.cmd.Wait(); err != nil {
			return errors.Wrapf(err, "samtools for %v", f.name)
		}
	}
	return nil
}

// Err implements the method of the pipeline.Source interface.
func (f *InputFile) Err() error {
	return f.err
}

// Prepare implements the method of the pipeline.Source interface.
func (f *InputFile) Prepare(_ context.Context) int {
	return -1
}

// Fetch implements the method of the pipeline.Source interface. It fetches
// a batch of up to size raw lines.
func (f *InputFile) Fetch(size int) int {
	batch := make([]string, 0, size)
	for len(batch) < size {
		line, err := f.ReadLine()
		if err == io.EOF {
			break
		}
		if err != nil {
			f.err = err
			break
		}
		batch = append(batch, line)
	}
	f.batch = batch
	return len(batch)
}

// Data implements the method of the pipeline.Source interface.
func (f *InputFile) Data() interface{} {
	return f.batch
}

// WriteLine writes one line to the stream, appending the line terminator.
func (f *OutputFile) WriteLine(line string) error {
	if _, err := f.Writer.WriteString(line); err != nil {
		return errors.Wrapf(err, "writing %v", f.name)
	}
	if err := f.Writer.WriteByte('\n'); err != nil {
		return errors.Wrapf(err, "writing %v", f.name)
	}
	return nil
}

// Close flushes and closes the output stream and waits for the samtools
// child process, if any.
func (f *OutputFile) Close() error {
	if err := f.Writer.Flush(); err != nil {
		return errors.Wrapf(err, "flushing %v", f.name)
	}
	if f.gz != nil {
		if err := f.gz.Close(); err != nil {
			return errors.Wrapf(err, "closing %v", f.name)
		}
	}
	if f.wc != nil {
		if err := f.wc.Close(); err != nil {
			return errors.Wrapf(err, "closing %v", f.name)
		}
	}
	if f.cmd != nil {
		if err := f.cmd.Wait(); err != nil {
			return errors.Wrapf(err, "samtools for %v", f.name)
		}
	}
	return nil
}
