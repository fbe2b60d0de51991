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
	"strings"

	"github.com/grailbio/base/tsv"
	"github.com/grailbio/strandbias/strandbias"
)

// SBTableTsvRow represents a single row of a .sbtable.tsv file: a variant
// site and its raw allele-specific strand counts, as extracted from the
// AS_SB_TABLE INFO field of a VCF.
type SBTableTsvRow struct {
	Chr     string `tsv:"#CHROM"`      // Chromosome
	Pos     int64  `tsv:"POS"`         // Position in chromosome
	Ref     string `tsv:"REF"`         // Reference allele
	Alt     string `tsv:"ALT"`         // Comma-separated alternate alleles
	SBTable string `tsv:"AS_SB_TABLE"` // refF,refR|alt1F,alt1R|...
}

// ReadSBTableTsv reads a .sbtable.tsv file from the given io.Reader.
func ReadSBTableTsv(r io.Reader) ([]SBTableTsvRow, error) {
	tsvReader := tsv.NewReader(r)
	tsvReader.Comment = '#'

	rows := make([]SBTableTsvRow, 0)
	for {
		var row SBTableTsvRow
		if err := tsvReader.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteSBTableTsv writes a .sbtable.tsv file to the given writer.
func WriteSBTableTsv(rows []SBTableTsvRow, writer io.Writer) error {
	tsvWriter := tsv.NewRowWriter(writer)
	for i := range rows {
		if err := tsvWriter.Write(&rows[i]); err != nil {
			return err
		}
	}
	return tsvWriter.Flush()
}

// SBTableSite is a SBTableTsvRow with its AS_SB_TABLE parsed.
type SBTableSite struct {
	row       SBTableTsvRow
	alts      []string
	ref       strandbias.StrandCount
	altCounts []strandbias.StrandCount
}

// NewSBTableSite parses row.SBTable.  It must contain one count pair per ALT
// allele, and ALT alleles must be distinct.
func NewSBTableSite(row SBTableTsvRow) (*SBTableSite, error) {
	ref, altCounts, err := strandbias.ParseSBTable(row.SBTable)
	if err != nil {
		return nil, fmt.Errorf("%s:%d: %v", row.Chr, row.Pos, err)
	}
	alts := strings.Split(row.Alt, ",")
	if len(alts) != len(altCounts) {
		return nil, fmt.Errorf("%s:%d: %d ALT alleles but %d alternate count pairs in %s",
			row.Chr, row.Pos, len(alts), len(altCounts), strandbias.RawKey)
	}
	seen := make(map[string]bool, len(alts))
	for _, a := range alts {
		if seen[a] {
			return nil, fmt.Errorf("%s:%d: duplicate ALT allele %q", row.Chr, row.Pos, a)
		}
		seen[a] = true
	}
	return &SBTableSite{row: row, alts: alts, ref: ref, altCounts: altCounts}, nil
}

// Locus implements Site.
func (s *SBTableSite) Locus() (chr string, pos int64, ref string) {
	return s.row.Chr, s.row.Pos, s.row.Ref
}

// AltAlleles implements Site, in ALT column order.
func (s *SBTableSite) AltAlleles() []string {
	return s.alts
}

// StrandCounts implements strandbias.StrandCounter.
func (s *SBTableSite) StrandCounts() (ref strandbias.StrandCount, alts map[string]strandbias.StrandCount) {
	alts = make(map[string]strandbias.StrandCount, len(s.alts))
	for i, a := range s.alts {
		alts[a] = s.altCounts[i]
	}
	return s.ref, alts
}
