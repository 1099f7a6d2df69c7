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

// alnqc decides, per alignment record in a SAM stream, whether a read is
// trustworthy evidence for the reference it maps to. It writes the records
// that pass to a filtered stream, the identifiers of the passing reads to a
// sorted, deduplicated list for downstream re-assembly, and a per-record
// report of the computed identity and coverage values.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/exascience/alnqc/cmd"
)

func printHelp() {
	fmt.Fprintln(os.Stderr, "Available commands: filter")
	fmt.Fprint(os.Stderr, "\n", cmd.FilterHelp)
}

func main() {
	fmt.Fprintln(os.Stderr, cmd.ProgramMessage)
	if len(os.Args) < 2 {
		log.Println("Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, cmd.HelpMessage, "\n")
		printHelp()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "filter":
		err = cmd.Filter()
	case "help", "-h", "--h", "-help", "--help":
		printHelp()
	default:
		log.Println("Unknown command: ", os.Args[1])
		fmt.Fprint(os.Stderr, cmd.HelpMessage, "\n")
		printHelp()
		os.Exit(1)
	}
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
