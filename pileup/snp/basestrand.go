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
package snp

import (
	"fmt"
	"io"

	"github.com/grailbio/base/tsv"
	"github.com/grailbio/strandbias/pileup"
	"github.com/grailbio/strandbias/strandbias"
)

// BaseStrandTsvRow represents a single row of a basestrand.tsv file.
type BaseStrandTsvRow struct {
	Chr  string `tsv:"#CHROM"` // Chromosome
	Pos  int64  `tsv:"POS"`    // Position in chromosome
	Ref  string `tsv:"REF"`    // Reference base
	FwdA int64  `tsv:"A+"`     // A count on the forward strand
	RevA int64  `tsv:"A-"`     // A count on the reverse strand
	FwdC int64  `tsv:"C+"`     // C count on the forward strand
	RevC int64  `tsv:"C-"`     // C count on the reverse strand
	FwdG int64  `tsv:"G+"`     // G count on the forward strand
	RevG int64  `tsv:"G-"`     // G count on the reverse strand
	FwdT int64  `tsv:"T+"`     // T count on the forward strand
	RevT int64  `tsv:"T-"`     // T count on the reverse strand
}

// Counts returns the row's counts with base as the major dimension
// (pileup.BaseA=0, C=1, G=2, T=3) and strand as the minor one
// (pileup.StrandFwd=0, pileup.StrandRev=1).
func (r BaseStrandTsvRow) Counts() [pileup.NBase][2]int64 {
	return [pileup.NBase][2]int64{
		{r.FwdA, r.RevA},
		{r.FwdC, r.RevC},
		{r.FwdG, r.RevG},
		{r.FwdT, r.RevT},
	}
}

// refBase returns the enum of the REF column; BaseX unless it is a single
// A/C/G/T.
func (r BaseStrandTsvRow) refBase() byte {
	if len(r.Ref) != 1 {
		return pileup.BaseX
	}
	return pileup.ASCIIToEnum(r.Ref[0])
}

// Locus implements Site.
func (r BaseStrandTsvRow) Locus() (chr string, pos int64, ref string) {
	return r.Chr, r.Pos, r.Ref
}

// AltAlleles implements Site.  The three non-reference bases are returned in
// A/C/G/T order; a row whose REF is not A/C/G/T has no alternate alleles.
func (r BaseStrandTsvRow) AltAlleles() []string {
	refBase := r.refBase()
	if refBase == pileup.BaseX {
		return nil
	}
	alts := make([]string, 0, pileup.NBase-1)
	for b := byte(0); b < pileup.NBase; b++ {
		if b != refBase {
			alts = append(alts, string(pileup.EnumToASCIITable[b]))
		}
	}
	return alts
}

// StrandCounts implements strandbias.StrandCounter, keyed the same way as
// AltAlleles.
func (r BaseStrandTsvRow) StrandCounts() (ref strandbias.StrandCount, alts map[string]strandbias.StrandCount) {
	refBase := r.refBase()
	if refBase == pileup.BaseX {
		return ref, nil
	}
	counts := r.Counts()
	alts = make(map[string]strandbias.StrandCount, pileup.NBase-1)
	for b := byte(0); b < pileup.NBase; b++ {
		c := strandbias.NewStrandCount(counts[b][pileup.StrandFwd], counts[b][pileup.StrandRev])
		if b == refBase {
			ref = c
		} else {
			alts[string(pileup.EnumToASCIITable[b])] = c
		}
	}
	return ref, alts
}

// validate checks the invariants StrandCounts depends on.
func (r BaseStrandTsvRow) validate() error {
	for b, strands := range r.Counts() {
		for s, n := range strands {
			if n < 0 {
				return fmt.Errorf("%s:%d: negative %c%c count %d",
					r.Chr, r.Pos, pileup.EnumToASCIITable[b], pileup.StrandToASCIITable[s], n)
			}
		}
	}
	return nil
}

// ReadBaseStrandTsv reads a basestrand.tsv file from the given io.Reader.
func ReadBaseStrandTsv(r io.Reader) ([]BaseStrandTsvRow, error) {
	tsvReader := tsv.NewReader(r)
	tsvReader.Comment = '#'

	rows := make([]BaseStrandTsvRow, 0)
	for {
		var row BaseStrandTsvRow
		if err := tsvReader.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if err := row.validate(); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteBaseStrandTsv writes a basestrand.tsv file to the given writer
func WriteBaseStrandTsv(rows []BaseStrandTsvRow, writer io.Writer) error {
	tsvWriter := tsv.NewRowWriter(writer)
	for i := range rows {
		if err := tsvWriter.Write(&rows[i]); err != nil {
			return err
		}
	}
	return tsvWriter.Flush()
}

// singleStrandBaseStrandTsvRow represents a single row of a
// strand.<fwd/rev>.snp.tsv file.
type singleStrandBaseStrandTsvRow struct {
	Chr   string `tsv:"CHROM"` // Chromosome
	Pos   int64  `tsv:"POS"`   // Position in chromosome
	Depth int64  `tsv:"DEPTH"` // Depth
	Ref   string `tsv:"REF"`   // Reference base
	A     int64  `tsv:"A"`     // A count
	C     int64  `tsv:"C"`     // C count
	G     int64  `tsv:"G"`     // G count
	T     int64  `tsv:"T"`     // T count
	N     int64  `tsv:"N"`     // N count
	Ins   int64  `tsv:"INS"`   // Insertion
	Del   int64  `tsv:"DEL"`   // Deletion
}

func newSingleStrandReader(r io.Reader) *tsv.Reader {
	tsvReader := tsv.NewReader(r)
	tsvReader.HasHeaderRow = true
	tsvReader.UseHeaderNames = true
	return tsvReader
}

// ReadSingleStrandBaseStrandTsv joins a pair of strand-specific
// strand.<fwd/rev>.snp.tsv files into basestrand rows.  The two files must
// list the same positions, with the same REF, in the same order, so they
// must also have the same number of rows.
func ReadSingleStrandBaseStrandTsv(forward, reverse io.Reader) ([]BaseStrandTsvRow, error) {
	fwdReader := newSingleStrandReader(forward)
	revReader := newSingleStrandReader(reverse)

	rows := make([]BaseStrandTsvRow, 0)
	for {
		var fwdRow, revRow singleStrandBaseStrandTsvRow
		fwdErr := fwdReader.Read(&fwdRow)
		if fwdErr != nil && fwdErr != io.EOF {
			return nil, fwdErr
		}
		revErr := revReader.Read(&revRow)
		if revErr != nil && revErr != io.EOF {
			return nil, revErr
		}
		if fwdErr == io.EOF && revErr == io.EOF {
			break
		}
		if fwdErr == io.EOF {
			return nil, fmt.Errorf("forward-strand file ended before %s %d in reverse-strand file", revRow.Chr, revRow.Pos)
		}
		if revErr == io.EOF {
			return nil, fmt.Errorf("reverse-strand file ended before %s %d in forward-strand file", fwdRow.Chr, fwdRow.Pos)
		}

		if fwdRow.Chr != revRow.Chr || fwdRow.Pos != revRow.Pos {
			return nil, fmt.Errorf("expected equal chromosome position but got fwd: %s %d and rev: %s %d",
				fwdRow.Chr, fwdRow.Pos, revRow.Chr, revRow.Pos)
		}
		if fwdRow.Ref != revRow.Ref {
			return nil, fmt.Errorf("expected equal reference alleles but got fwd: %s and rev: %s", fwdRow.Ref, revRow.Ref)
		}

		row := BaseStrandTsvRow{
			Chr:  fwdRow.Chr,
			Pos:  fwdRow.Pos,
			Ref:  fwdRow.Ref,
			FwdA: fwdRow.A,
			RevA: revRow.A,
			FwdC: fwdRow.C,
			RevC: revRow.C,
			FwdG: fwdRow.G,
			RevG: revRow.G,
			FwdT: fwdRow.T,
			RevT: revRow.T,
		}
		if err := row.validate(); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
