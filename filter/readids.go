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
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// An IDCollector accumulates the query names of passing records. It has set
// semantics: supplementary and secondary alignments of the same read insert
// the same name, which is a no-op. Add may be called from concurrent
// evaluators; Finalize must only be called after the stream has ended.
type IDCollector struct {
	mutex sync.Mutex
	ids   map[string]struct{}
}

// NewIDCollector returns an empty collector.
func NewIDCollector() *IDCollector {
	return &IDCollector{ids: make(map[string]struct{})}
}

// Add inserts one query name.
func (c *IDCollector) Add(qname string) {
	c.mutex.Lock()
	c.ids[qname] = struct{}{}
	c.mutex.Unlock()
}

// Len returns the number of distinct query names collected so far.
func (c *IDCollector) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.ids)
}

// Finalize returns the collected query names, lexicographically sorted and
// without duplicates. The read-ID list has no order relationship to the
// input order.
func (c *IDCollector) Finalize() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	ids := make([]string, 0, len(c.ids))
	for id := range c.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// WriteTo writes the finalized list to w, one query name per line.
func (c *IDCollector) WriteTo(w io.Writer) error {
	for _, id := range c.Finalize() {
		if _, err := io.WriteString(w, id+"\n"); err != nil {
			return errors.Wrap(err, "writing read-ID list")
		}
	}
	return nil
}
