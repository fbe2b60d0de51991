// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package strandbias

import (
	"fmt"

	"github.com/grailbio/base/log"
)

// Column indexes of a Table.
const (
	Fwd = 0
	Rev = 1
)

// Row indexes of a Table.
const (
	RefRow = 0
	AltRow = 1
)

// StrandCount is the number of reads supporting a single allele on each
// strand.  The zero value is a valid (0, 0) count.
type StrandCount struct {
	fwd, rev int64
}

// NewStrandCount returns the count (fwd, rev).  Counts are never negative;
// passing a negative value is a programming error and panics.
func NewStrandCount(fwd, rev int64) StrandCount {
	if fwd < 0 || rev < 0 {
		log.Panicf("strandbias.NewStrandCount: negative count (fwd=%d, rev=%d)", fwd, rev)
	}
	return StrandCount{fwd: fwd, rev: rev}
}

// Fwd returns the forward-strand count.
func (c StrandCount) Fwd() int64 { return c.fwd }

// Rev returns the reverse-strand count.
func (c StrandCount) Rev() int64 { return c.rev }

// Total returns the number of reads on either strand.
func (c StrandCount) Total() int64 { return c.fwd + c.rev }

// String renders the count as "fwd,rev", the notation used by the raw
// AS_SB_TABLE annotation.
func (c StrandCount) String() string {
	return fmt.Sprintf("%d,%d", c.fwd, c.rev)
}

// Table is a ref-vs-alt, fwd-vs-rev contingency table.  It can only be built
// from StrandCounts, so every cell is non-negative.
type Table struct {
	cells [2][2]int64
}

// NewTable returns the table [[ref.Fwd, ref.Rev], [alt.Fwd, alt.Rev]].
func NewTable(ref, alt StrandCount) Table {
	return Table{cells: [2][2]int64{
		{ref.fwd, ref.rev},
		{alt.fwd, alt.rev},
	}}
}

// At returns the count in the given row (RefRow/AltRow) and column (Fwd/Rev).
func (t Table) At(row, strand int) int64 {
	return t.cells[row][strand]
}

// Ref returns the reference row.
func (t Table) Ref() StrandCount {
	return StrandCount{fwd: t.cells[RefRow][Fwd], rev: t.cells[RefRow][Rev]}
}

// Alt returns the alternate-allele row.
func (t Table) Alt() StrandCount {
	return StrandCount{fwd: t.cells[AltRow][Fwd], rev: t.cells[AltRow][Rev]}
}

// FlipStrands returns the table with the fwd and rev columns exchanged, i.e.
// the same evidence observed from the opposite strand.
func (t Table) FlipStrands() Table {
	return NewTable(NewStrandCount(t.cells[RefRow][Rev], t.cells[RefRow][Fwd]),
		NewStrandCount(t.cells[AltRow][Rev], t.cells[AltRow][Fwd]))
}

// SwapAlleles returns the table with the ref and alt rows exchanged.
func (t Table) SwapAlleles() Table {
	return NewTable(t.Alt(), t.Ref())
}

func (t Table) String() string {
	return fmt.Sprintf("[[%d,%d],[%d,%d]]", t.cells[0][0], t.cells[0][1], t.cells[1][0], t.cells[1][1])
}
