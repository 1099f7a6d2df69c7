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

// Package cmd implements the command line interface of alnqc.
package cmd

import (
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sys/unix"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Program identity, printed on startup and stamped into log lines.
const (
	ProgramName    = "alnqc"
	ProgramVersion = "1.0.0"
	ProgramURL     = "https://github.com/exascience/alnqc"
)

// ProgramMessage is the first line printed when the alnqc binary is called.
var ProgramMessage string

func init() {
	ProgramMessage = fmt.Sprint(
		"\n", ProgramName, " version ", ProgramVersion,
		" compiled with ", runtime.Version(),
		" - see ", ProgramURL, " for more information.\n",
	)
}

// HelpMessage is printed to show the --help flag.
const HelpMessage = "Print command details:\n[--help]\n"

var sugar *zap.SugaredLogger

// setLogger configures the operational logger. Log lines go to standard
// error, and additionally to a size-rotated file when path is non-empty.
// Every line carries a fresh run ID, so interleaved logs of concurrent
// pipeline invocations can be told apart.
func setLogger(debug bool, path string) {
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}
	encoderConf := zap.NewProductionEncoderConfig()
	encoderConf.EncodeTime = zapcore.ISO8601TimeEncoder
	sink := zapcore.AddSync(os.Stderr)
	if path != "" {
		sink = zapcore.NewMultiWriteSyncer(sink, zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
		}))
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConf), sink, level)
	sugar = zap.New(core).Sugar().With("run", uuid.New().String())
}

// raiseOpenFileLimit raises the soft open-file limit to the hard limit. The
// samtools child processes used for BAM input and output each hold an open
// pipe on top of the three output sinks.
func raiseOpenFileLimit() {
	var limit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &limit); err == nil && limit.Cur < limit.Max {
		limit.Cur = limit.Max
		_ = unix.Setrlimit(unix.RLIMIT_NOFILE, &limit)
	}
}

func getFilename(s, help string) string {
	switch s {
	case "-h", "--h", "-help", "--help":
		fmt.Fprint(os.Stderr, help)
		os.Exit(0)
	default:
		if strings.HasPrefix(s, "-") && len(s) > 1 {
			log.Println("Filename(s) in command line missing.")
			fmt.Fprint(os.Stderr, help)
			os.Exit(1)
		}
	}
	return s
}

func parseFlags(flags flag.FlagSet, requiredArgs int, help string) {
	if len(os.Args) < requiredArgs {
		fmt.Fprintln(os.Stderr, "Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	flags.SetOutput(ioutil.Discard)
	if err := flags.Parse(os.Args[requiredArgs:]); err != nil {
		x := 0
		if err != flag.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			x = 1
		}
		fmt.Fprint(os.Stderr, help)
		os.Exit(x)
	}
	if flags.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Cannot parse remaining parameters:", flags.Args())
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
}

func logCheckFile(parameter, format string, v ...interface{}) {
	if parameter != "" {
		log.Printf(format+" for command line parameter %v.\n", append(v, parameter)...)
	} else {
		log.Printf(format+".\n", v...)
	}
}

func checkExist(parameter, filename string) bool {
	if filename == "" {
		logCheckFile(parameter, "Error: Missing filename")
		return false
	}
	if filename == "-" || filename == "/dev/stdin" {
		return true
	}
	if _, err := os.Stat(filename); err != nil {
		logCheckFile(parameter, "Error: %v", err)
		return false
	}
	return true
}

func checkCreate(parameter, filename string) bool {
	if filename == "" {
		logCheckFile(parameter, "Error: Missing filename")
		return false
	}
	if filename == "-" || filename == "/dev/stdout" {
		return true
	}
	if dir := filepath.Dir(filename); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			logCheckFile(parameter, "Error: %v", err)
			return false
		}
	}
	return true
}
