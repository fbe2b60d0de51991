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
	"context"
	"io"
	"runtime"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/strandbias/interval"
	"github.com/grailbio/strandbias/pileup"
	"github.com/grailbio/strandbias/strandbias"
)

type Opts struct {
	// Commandline options.
	InputFormat string
	BedPath     string
	BedOneBased bool
	Region      string
	Cols        string
	MinAltDepth int
	Parallelism int
}

var DefaultOpts = Opts{
	InputFormat: "basestrand-tsv",
	BedPath:     "",
	BedOneBased: false,
	Region:      "",
	Cols:        "",
	MinAltDepth: 1,
	Parallelism: 0,
}

const (
	colBitCounts = 1 << iota
	colBitDp
)

var colNameMap = map[string]int{
	"counts": colBitCounts,
	"dp":     colBitDp,
}

type outputFormat int

const (
	formatTSV outputFormat = iota
	formatTSVBgz
	formatRio
)

var outputFormatNames = map[string]outputFormat{
	"tsv":     formatTSV,
	"tsv-bgz": formatTSVBgz,
	"rio":     formatRio,
}

// Strand-specific input files are named <prefix><suffix>.
const (
	fwdStrandSuffix = ".strand.fwd.snp.tsv"
	revStrandSuffix = ".strand.rev.snp.tsv"
)

// Site is one position whose per-allele strand counts are reduced to AS_SOR
// values.
type Site interface {
	strandbias.StrandCounter
	// Locus returns the position and reference allele, as they should appear
	// in the output.
	Locus() (chr string, pos int64, ref string)
	// AltAlleles returns the keys of StrandCounts' alts, in output order.
	AltAlleles() []string
}

// AlleleSOR is the AS_SOR result for one alternate allele.
type AlleleSOR struct {
	Alt   string
	Count strandbias.StrandCount
	SOR   strandbias.Value
}

// SiteSOR holds the AS_SOR results of one site.  RefCount is the reference
// row shared by every allele's table.
type SiteSOR struct {
	Chr      string
	Pos      int64
	Ref      string
	RefCount strandbias.StrandCount
	Alleles  []AlleleSOR
}

// Annotation returns the site's AS_SOR annotation, one value per reported
// allele.
func (s *SiteSOR) Annotation() strandbias.Annotation {
	m := make(strandbias.AlleleMap, len(s.Alleles))
	alts := make([]string, len(s.Alleles))
	for i, a := range s.Alleles {
		m[a.Alt] = a.SOR
		alts[i] = a.Alt
	}
	return m.Annotate(alts)
}

// newSiteSOR reduces one site.  Alleles with fewer than minAltDepth reads are
// not reported.
func newSiteSOR(site Site, minAltDepth int64) SiteSOR {
	chr, pos, ref := site.Locus()
	refCount, alts := site.StrandCounts()
	kept := make(map[string]strandbias.StrandCount, len(alts))
	for a, c := range alts {
		if c.Total() >= minAltDepth {
			kept[a] = c
		}
	}
	values := strandbias.Reduce(refCount, kept)

	result := SiteSOR{
		Chr:      chr,
		Pos:      pos,
		Ref:      ref,
		RefCount: refCount,
	}
	for _, a := range site.AltAlleles() {
		v, ok := values[a]
		if !ok {
			continue
		}
		result.Alleles = append(result.Alleles, AlleleSOR{Alt: a, Count: kept[a], SOR: v})
	}
	return result
}

// ComputeSOR reduces every site, splitting the work into at most parallelism
// contiguous jobs.  Results are in the same order as sites.
func ComputeSOR(sites []Site, minAltDepth int, parallelism int) ([]SiteSOR, error) {
	results := make([]SiteSOR, len(sites))
	nSite := len(sites)
	if nSite == 0 {
		return results, nil
	}
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	if parallelism > nSite {
		parallelism = nSite
	}
	err := traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * nSite) / parallelism
		endIdx := ((jobIdx + 1) * nSite) / parallelism
		for i := startIdx; i < endIdx; i++ {
			results[i] = newSiteSOR(sites[i], int64(minAltDepth))
		}
		return nil
	})
	return results, err
}

// openInput opens path for reading, transparently decompressing it.
func openInput(ctx context.Context, path string, read func(r io.Reader) error) (err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return errors.E(err, "couldn't open", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	reader, _ := compress.NewReader(in.Reader(ctx))
	defer func() {
		if e := reader.Close(); e != nil && err == nil {
			err = e
		}
	}()
	if err = read(reader); err != nil {
		return errors.E(err, "couldn't read", path)
	}
	return nil
}

// ReadSites reads the sites in inPath.  inputFormat is one of
// "basestrand-tsv", "strand-tsv" (inPath is the prefix of a
// .strand.fwd.snp.tsv/.strand.rev.snp.tsv pair) and "sbtable-tsv".  All
// inputs may be gzip- or bgzip-compressed.
func ReadSites(ctx context.Context, inPath, inputFormat string) ([]Site, error) {
	var rows []BaseStrandTsvRow
	switch inputFormat {
	case "basestrand-tsv":
		if err := openInput(ctx, inPath, func(r io.Reader) (err error) {
			rows, err = ReadBaseStrandTsv(r)
			return
		}); err != nil {
			return nil, err
		}
	case "strand-tsv":
		fwdPath := inPath + fwdStrandSuffix
		revPath := inPath + revStrandSuffix
		if err := openInput(ctx, fwdPath, func(fwd io.Reader) error {
			return openInput(ctx, revPath, func(rev io.Reader) (err error) {
				rows, err = ReadSingleStrandBaseStrandTsv(fwd, rev)
				return
			})
		}); err != nil {
			return nil, err
		}
	case "sbtable-tsv":
		var sbRows []SBTableTsvRow
		if err := openInput(ctx, inPath, func(r io.Reader) (err error) {
			sbRows, err = ReadSBTableTsv(r)
			return
		}); err != nil {
			return nil, err
		}
		sites := make([]Site, len(sbRows))
		for i, row := range sbRows {
			site, err := NewSBTableSite(row)
			if err != nil {
				return nil, errors.E(errors.Invalid, err, inPath)
			}
			sites[i] = site
		}
		return sites, nil
	default:
		return nil, errors.E(errors.Invalid, "unrecognized input format:", inputFormat)
	}
	sites := make([]Site, len(rows))
	for i := range rows {
		sites[i] = rows[i]
	}
	return sites, nil
}

// loadRegions returns the BEDUnion selected by opts.BedPath or opts.Region,
// or nil if neither is set.
func loadRegions(ctx context.Context, opts *Opts) (*interval.BEDUnion, error) {
	var (
		bedUnion interval.BEDUnion
		err      error
	)
	switch {
	case opts.BedPath != "" && opts.Region != "":
		return nil, errors.E(errors.Invalid, "StrandOddsRatio: -region and -bed flags can't be used together")
	case opts.BedPath != "":
		if bedUnion, err = interval.NewBEDUnionFromPath(ctx, opts.BedPath, interval.NewBEDOpts{OneBasedInput: opts.BedOneBased}); err != nil {
			return nil, errors.E(err, "couldn't load", opts.BedPath)
		}
	case opts.Region != "":
		var entry interval.Entry
		if entry, err = interval.ParseRegionString(opts.Region); err != nil {
			return nil, errors.E(errors.Invalid, err)
		}
		if bedUnion, err = interval.NewBEDUnionFromEntries([]interval.Entry{entry}); err != nil {
			return nil, errors.E(errors.Invalid, err)
		}
	default:
		return nil, nil
	}
	return &bedUnion, nil
}

// FilterSites returns the sites whose (1-based) position is inside regions.
func FilterSites(sites []Site, regions *interval.BEDUnion) []Site {
	kept := sites[:0:0]
	for _, site := range sites {
		chr, pos, _ := site.Locus()
		if pos < 1 || pos > interval.PosTypeMax {
			continue
		}
		if regions.ContainsByName(chr, interval.PosType(pos-1)) {
			kept = append(kept, site)
		}
	}
	return kept
}

// StrandOddsRatio computes the AS_SOR annotation of every site in inPath
// (restricted to opts.BedPath or opts.Region when either is set), and writes the results to outPrefix + ".sor.tsv", ".sor.tsv.gz" or ".sor.rio"
// depending on format ("tsv", "tsv-bgz" or "rio").
func StrandOddsRatio(ctx context.Context, inPath, format, outPrefix string, opts *Opts) (err error) {
	outFormat, ok := outputFormatNames[format]
	if !ok {
		return errors.E(errors.Invalid, "StrandOddsRatio: unrecognized format= argument", format)
	}
	if opts.MinAltDepth < 0 {
		return errors.E(errors.Invalid, "StrandOddsRatio: min-alt-depth= argument must be nonnegative")
	}
	var colBitset int
	if opts.Cols != "" {
		if outFormat == formatRio {
			return errors.E(errors.Invalid, "StrandOddsRatio: -cols cannot be used with rio output")
		}
		if colBitset, err = pileup.ParseCols(opts.Cols, colNameMap, 0); err != nil {
			return errors.E(errors.Invalid, err)
		}
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	regions, err := loadRegions(ctx, opts)
	if err != nil {
		return err
	}

	sites, err := ReadSites(ctx, inPath, opts.InputFormat)
	if err != nil {
		return err
	}
	if regions != nil {
		nRead := len(sites)
		sites = FilterSites(sites, regions)
		log.Debug.Printf("StrandOddsRatio: %d of %d sites inside the requested regions", len(sites), nRead)
	}
	log.Printf("StrandOddsRatio: read %d sites from %s (%d jobs)", len(sites), inPath, parallelism)
	results, err := ComputeSOR(sites, opts.MinAltDepth, parallelism)
	if err != nil {
		return err
	}

	mainPath := outPrefix + ".sor"
	switch outFormat {
	case formatTSV:
		err = writeSORTSVFile(ctx, mainPath+".tsv", results, colBitset, false, parallelism)
	case formatTSVBgz:
		err = writeSORTSVFile(ctx, mainPath+".tsv.gz", results, colBitset, true, parallelism)
	case formatRio:
		err = writeSORRioFile(ctx, mainPath+".rio", results)
	}
	if err == nil {
		log.Debug.Printf("StrandOddsRatio: wrote %d sites to %s", len(results), mainPath)
	}
	return
}
