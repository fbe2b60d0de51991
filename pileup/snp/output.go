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
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/strandbias/pileup"
	"github.com/grailbio/strandbias/strandbias"
)

const (
	refNamesHeader = "RefNames"
	trailerVersion = 1
)

// writeSORTSV writes one line per (site, reported allele).
func writeSORTSV(tsvw *tsv.Writer, results []SiteSOR, colBitset int) (err error) {
	tsvw.WriteString("#CHROM\tPOS\tREF\tALT\t" + strandbias.Key)
	if (colBitset & colBitCounts) != 0 {
		tsvw.WriteString("REF" + string(pileup.StrandToASCIITable[pileup.StrandFwd]))
		tsvw.WriteString("REF" + string(pileup.StrandToASCIITable[pileup.StrandRev]))
		tsvw.WriteString("ALT" + string(pileup.StrandToASCIITable[pileup.StrandFwd]))
		tsvw.WriteString("ALT" + string(pileup.StrandToASCIITable[pileup.StrandRev]))
	}
	if (colBitset & colBitDp) != 0 {
		tsvw.WriteString("DP")
	}
	if err = tsvw.EndLine(); err != nil {
		return
	}
	for i := range results {
		site := &results[i]
		for _, a := range site.Alleles {
			tsvw.WriteString(site.Chr)
			tsvw.WriteInt64(site.Pos)
			tsvw.WriteString(site.Ref)
			tsvw.WriteString(a.Alt)
			tsvw.WriteString(strandbias.FormatValue(a.SOR))
			if (colBitset & colBitCounts) != 0 {
				tsvw.WriteInt64(site.RefCount.Fwd())
				tsvw.WriteInt64(site.RefCount.Rev())
				tsvw.WriteInt64(a.Count.Fwd())
				tsvw.WriteInt64(a.Count.Rev())
			}
			if (colBitset & colBitDp) != 0 {
				tsvw.WriteInt64(site.RefCount.Total() + a.Count.Total())
			}
			if err = tsvw.EndLine(); err != nil {
				return
			}
		}
	}
	return tsvw.Flush()
}

func writeSORTSVFile(ctx context.Context, path string, results []SiteSOR, colBitset int, bgzip bool, parallelism int) (err error) {
	var dst file.File
	if dst, err = file.Create(ctx, path); err != nil {
		return errors.E(err, "couldn't create", path)
	}
	defer file.CloseAndReport(ctx, dst, &err)

	if !bgzip {
		return writeSORTSV(tsv.NewWriter(dst.Writer(ctx)), results, colBitset)
	}
	bgzfWriter := bgzf.NewWriter(dst.Writer(ctx), parallelism)
	defer func() {
		if e := bgzfWriter.Close(); e != nil && err == nil {
			err = e
		}
	}()
	return writeSORTSV(tsv.NewWriter(bgzfWriter), results, colBitset)
}

func sorRioTrailer(numSites int) []byte {
	var buffer bytes.Buffer
	if err := binary.Write(&buffer, binary.LittleEndian, int64(trailerVersion)); err != nil {
		panic("couldn't write trailer version")
	}
	if err := binary.Write(&buffer, binary.LittleEndian, int64(numSites)); err != nil {
		panic("couldn't write numSites to trailer")
	}
	return buffer.Bytes()
}

func parseSORRioTrailer(trailer []byte) (int64, error) {
	r := bytes.NewReader(trailer)
	var version, numSites int64
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return 0, err
	}
	if version != trailerVersion {
		return 0, fmt.Errorf("unrecognized trailer version: got %d, want %d", version, trailerVersion)
	}
	if err := binary.Read(r, binary.LittleEndian, &numSites); err != nil {
		return 0, err
	}
	return numSites, nil
}

// WriteSORRio writes the given results to out using recordio.  Chromosome
// names are stored once, in the RefNames header.
func WriteSORRio(results []SiteSOR, out io.Writer) error {
	// recordiozstd.Init() is called in singleton.go's init().
	recordWriter := recordio.NewWriter(out, recordio.WriterOpts{
		Marshal:      marshalSORRecord,
		Transformers: []string{recordiozstd.Name},
	})
	var refNames []string
	refIDs := make(map[string]uint32)
	records := make([]sorRioRecord, len(results))
	for i := range results {
		chr := results[i].Chr
		refID, ok := refIDs[chr]
		if !ok {
			refID = uint32(len(refNames))
			refIDs[chr] = refID
			refNames = append(refNames, chr)
		}
		records[i] = sorRioRecord{refID: refID, site: results[i]}
	}
	recordWriter.AddHeader(refNamesHeader, strings.Join(refNames, "\000"))
	recordWriter.AddHeader(recordio.KeyTrailer, true)
	for i := range records {
		recordWriter.Append(&records[i])
	}
	recordWriter.SetTrailer(sorRioTrailer(len(records)))
	return recordWriter.Finish()
}

// ReadSORRio reads results written by WriteSORRio.
func ReadSORRio(rs io.ReadSeeker) (results []SiteSOR, err error) {
	scanner := recordio.NewScanner(rs, recordio.ScannerOpts{
		Unmarshal: unmarshalSORRecord,
	})
	if len(scanner.Trailer()) != 0 {
		var numSites int64
		if numSites, err = parseSORRioTrailer(scanner.Trailer()); err != nil {
			return
		}
		results = make([]SiteSOR, 0, numSites)
	}

	var refNames []string
	for _, kv := range scanner.Header() {
		switch kv.Key {
		case refNamesHeader:
			if packed := kv.Value.(string); packed != "" {
				refNames = strings.Split(packed, "\000")
			}
			// Cannot return an error on unrecognized key since recordio can write its own.
		}
	}

	for scanner.Scan() {
		rec := scanner.Get().(*sorRioRecord)
		if int(rec.refID) >= len(refNames) {
			return nil, fmt.Errorf("ReadSORRio: refID %d out of range (%d RefNames)", rec.refID, len(refNames))
		}
		rec.site.Chr = refNames[rec.refID]
		results = append(results, rec.site)
	}
	err = scanner.Err()
	return
}

func writeSORRioFile(ctx context.Context, path string, results []SiteSOR) (err error) {
	var dst file.File
	if dst, err = file.Create(ctx, path); err != nil {
		return errors.E(err, "couldn't create", path)
	}
	defer file.CloseAndReport(ctx, dst, &err)
	return WriteSORRio(results, dst.Writer(ctx))
}

// ReadSORRioFile reads a .sor.rio file written by StrandOddsRatio.
func ReadSORRioFile(ctx context.Context, path string) (results []SiteSOR, err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return nil, errors.E(err, "couldn't open", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	return ReadSORRio(in.Reader(ctx))
}
