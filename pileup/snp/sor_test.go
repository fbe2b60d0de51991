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
package snp_test

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/strandbias/pileup/snp"
	"github.com/grailbio/strandbias/strandbias"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

var testRows = []snp.BaseStrandTsvRow{
	// Skewed, but skewed the same way for ref and alt.
	{Chr: "chr1", Pos: 100, Ref: "C", FwdC: 10, RevC: 1, FwdT: 9, RevT: 2},
	// Alt seen on the forward strand only.
	{Chr: "chr1", Pos: 200, Ref: "A", FwdA: 5, RevA: 5, FwdC: 5},
	// No reference base.
	{Chr: "chr2", Pos: 50, Ref: "N", FwdA: 3, RevA: 3},
	{Chr: "chr2", Pos: 60, Ref: "G", FwdA: 2, RevA: 2, FwdG: 4, RevG: 4},
}

func testSites() []snp.Site {
	sites := make([]snp.Site, len(testRows))
	for i := range testRows {
		sites[i] = testRows[i]
	}
	return sites
}

func present(ref, alt strandbias.StrandCount) strandbias.Value {
	return strandbias.Present(strandbias.CalculateSOR(strandbias.NewTable(ref, alt)))
}

func TestComputeSOR(t *testing.T) {
	results, err := snp.ComputeSOR(testSites(), 1, 1)
	assert.NoError(t, err)
	c := strandbias.NewStrandCount
	expected := []snp.SiteSOR{
		{Chr: "chr1", Pos: 100, Ref: "C", RefCount: c(10, 1), Alleles: []snp.AlleleSOR{
			{Alt: "T", Count: c(9, 2), SOR: present(c(10, 1), c(9, 2))},
		}},
		{Chr: "chr1", Pos: 200, Ref: "A", RefCount: c(5, 5), Alleles: []snp.AlleleSOR{
			{Alt: "C", Count: c(5, 0), SOR: present(c(5, 5), c(5, 0))},
		}},
		{Chr: "chr2", Pos: 50, Ref: "N"},
		{Chr: "chr2", Pos: 60, Ref: "G", RefCount: c(4, 4), Alleles: []snp.AlleleSOR{
			{Alt: "A", Count: c(2, 2), SOR: present(c(4, 4), c(2, 2))},
		}},
	}
	assert.EQ(t, results, expected)
	expect.EQ(t, results[0].Annotation().String(), "AS_SOR=0.184")
	expect.EQ(t, results[1].Annotation().String(), "AS_SOR=4.615")
	expect.EQ(t, results[2].Annotation().String(), "AS_SOR=")

	// Splitting the sites across jobs must not change the results.
	for parallelism := 0; parallelism <= 6; parallelism++ {
		parallelResults, err := snp.ComputeSOR(testSites(), 1, parallelism)
		assert.NoError(t, err)
		expect.EQ(t, parallelResults, expected, "parallelism=%d", parallelism)
	}
}

func TestComputeSORMinAltDepth(t *testing.T) {
	results, err := snp.ComputeSOR(testSites(), 0, 2)
	assert.NoError(t, err)
	alts := func(s snp.SiteSOR) (alts []string, nPresent int) {
		for _, a := range s.Alleles {
			alts = append(alts, a.Alt)
			if a.SOR.IsPresent() {
				nPresent++
			}
		}
		return
	}
	gotAlts, nPresent := alts(results[0])
	expect.EQ(t, gotAlts, []string{"A", "G", "T"})
	expect.EQ(t, nPresent, 1)
	expect.EQ(t, results[0].Annotation().Value, ".,.,0.184")

	results, err = snp.ComputeSOR(testSites(), 5, 2)
	assert.NoError(t, err)
	expect.EQ(t, len(results[0].Alleles), 1)
	expect.EQ(t, len(results[1].Alleles), 1)
	expect.EQ(t, len(results[3].Alleles), 0)
}

func TestComputeSOREmpty(t *testing.T) {
	results, err := snp.ComputeSOR(nil, 1, 4)
	assert.NoError(t, err)
	expect.EQ(t, len(results), 0)
}

func writeTestFile(t *testing.T, path string, data []byte, gz bool) {
	if gz {
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		_, err := w.Write(data)
		assert.NoError(t, err)
		assert.NoError(t, w.Close())
		data = buf.Bytes()
	}
	assert.NoError(t, ioutil.WriteFile(path, data, 0600))
}

func writeBaseStrandFile(t *testing.T, path string, gz bool) {
	var buf bytes.Buffer
	assert.NoError(t, snp.WriteBaseStrandTsv(testRows, &buf))
	writeTestFile(t, path, buf.Bytes(), gz)
}

func readGzipFile(t *testing.T, path string) string {
	compressed, err := ioutil.ReadFile(path)
	assert.NoError(t, err)
	r, err := gzip.NewReader(bytes.NewReader(compressed))
	assert.NoError(t, err)
	data, err := ioutil.ReadAll(r)
	assert.NoError(t, err)
	assert.NoError(t, r.Close())
	return string(data)
}

const expectedDefaultTSV = "#CHROM\tPOS\tREF\tALT\tAS_SOR\n" +
	"chr1\t100\tC\tT\t0.184\n" +
	"chr1\t200\tA\tC\t4.615\n" +
	"chr2\t60\tG\tA\t0.693\n"

func TestStrandOddsRatio(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	plainPath := filepath.Join(tmpdir, "sample.basestrand.tsv")
	writeBaseStrandFile(t, plainPath, false)
	gzPath := filepath.Join(tmpdir, "sample.basestrand.tsv.gz")
	writeBaseStrandFile(t, gzPath, true)

	for _, test := range []struct {
		name     string
		inPath   string
		cols     string
		minDepth int
		expected string
	}{
		{"default", plainPath, "", 1, expectedDefaultTSV},
		{"gzipInput", gzPath, "", 1, expectedDefaultTSV},
		{
			"countsAndDp", plainPath, "counts,dp", 1,
			"#CHROM\tPOS\tREF\tALT\tAS_SOR\tREF+\tREF-\tALT+\tALT-\tDP\n" +
				"chr1\t100\tC\tT\t0.184\t10\t1\t9\t2\t22\n" +
				"chr1\t200\tA\tC\t4.615\t5\t5\t5\t0\t15\n" +
				"chr2\t60\tG\tA\t0.693\t4\t4\t2\t2\t12\n",
		},
		{
			"zeroDepthAlleles", plainPath, "+dp", 0,
			"#CHROM\tPOS\tREF\tALT\tAS_SOR\tDP\n" +
				"chr1\t100\tC\tA\t.\t11\n" +
				"chr1\t100\tC\tG\t.\t11\n" +
				"chr1\t100\tC\tT\t0.184\t22\n" +
				"chr1\t200\tA\tC\t4.615\t15\n" +
				"chr1\t200\tA\tG\t.\t10\n" +
				"chr1\t200\tA\tT\t.\t10\n" +
				"chr2\t60\tG\tA\t0.693\t12\n" +
				"chr2\t60\tG\tC\t.\t8\n" +
				"chr2\t60\tG\tT\t.\t8\n",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			outPrefix := filepath.Join(tmpdir, test.name)
			opts := snp.DefaultOpts
			opts.Cols = test.cols
			opts.MinAltDepth = test.minDepth
			opts.Parallelism = 2
			assert.NoError(t, snp.StrandOddsRatio(ctx, test.inPath, "tsv", outPrefix, &opts))
			got, err := ioutil.ReadFile(outPrefix + ".sor.tsv")
			assert.NoError(t, err)
			expect.EQ(t, string(got), test.expected)
		})
	}
}

func TestStrandOddsRatioBgz(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	inPath := filepath.Join(tmpdir, "sample.basestrand.tsv")
	writeBaseStrandFile(t, inPath, false)
	outPrefix := filepath.Join(tmpdir, "out")
	opts := snp.DefaultOpts
	assert.NoError(t, snp.StrandOddsRatio(ctx, inPath, "tsv-bgz", outPrefix, &opts))
	expect.EQ(t, readGzipFile(t, outPrefix+".sor.tsv.gz"), expectedDefaultTSV)
}

func TestStrandOddsRatioRio(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	inPath := filepath.Join(tmpdir, "sample.basestrand.tsv")
	writeBaseStrandFile(t, inPath, false)
	outPrefix := filepath.Join(tmpdir, "out")
	opts := snp.DefaultOpts
	opts.MinAltDepth = 0
	assert.NoError(t, snp.StrandOddsRatio(ctx, inPath, "rio", outPrefix, &opts))

	got, err := snp.ReadSORRioFile(ctx, outPrefix+".sor.rio")
	assert.NoError(t, err)
	expected, err := snp.ComputeSOR(testSites(), 0, 1)
	assert.NoError(t, err)
	expect.EQ(t, got, expected)
}

func TestReadWriteSORRio(t *testing.T) {
	results, err := snp.ComputeSOR(testSites(), 0, 1)
	assert.NoError(t, err)
	var buffer bytes.Buffer
	assert.NoError(t, snp.WriteSORRio(results, &buffer))
	got, err := snp.ReadSORRio(bytes.NewReader(buffer.Bytes()))
	assert.NoError(t, err)
	expect.EQ(t, got, results)

	buffer.Reset()
	assert.NoError(t, snp.WriteSORRio(nil, &buffer))
	got, err = snp.ReadSORRio(bytes.NewReader(buffer.Bytes()))
	assert.NoError(t, err)
	expect.EQ(t, len(got), 0)
}

func TestStrandOddsRatioStrandPair(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	header := []string{"CHROM", "POS", "DEPTH", "REF", "A", "C", "G", "T", "N", "INS", "DEL"}
	inPrefix := filepath.Join(tmpdir, "sample")
	writeTestFile(t, inPrefix+".strand.fwd.snp.tsv", []byte(makeTestTsv([][]string{
		header,
		{"chr1", "100", "19", "C", "0", "10", "0", "9", "0", "0", "0"},
	})), false)
	writeTestFile(t, inPrefix+".strand.rev.snp.tsv", []byte(makeTestTsv([][]string{
		header,
		{"chr1", "100", "3", "C", "0", "1", "0", "2", "0", "0", "0"},
	})), true)

	outPrefix := filepath.Join(tmpdir, "out")
	opts := snp.DefaultOpts
	opts.InputFormat = "strand-tsv"
	assert.NoError(t, snp.StrandOddsRatio(ctx, inPrefix, "tsv", outPrefix, &opts))
	got, err := ioutil.ReadFile(outPrefix + ".sor.tsv")
	assert.NoError(t, err)
	expect.EQ(t, string(got), "#CHROM\tPOS\tREF\tALT\tAS_SOR\nchr1\t100\tC\tT\t0.184\n")
}

func TestStrandOddsRatioSBTable(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	inPath := filepath.Join(tmpdir, "sample.sbtable.tsv.gz")
	var buf bytes.Buffer
	assert.NoError(t, snp.WriteSBTableTsv([]snp.SBTableTsvRow{
		{Chr: "chr3", Pos: 1000, Ref: "A", Alt: "T", SBTable: "10,1|9,2"},
		{Chr: "chr3", Pos: 2000, Ref: "AC", Alt: "A,ACC", SBTable: "5,5|5,0|0,0"},
	}, &buf))
	writeTestFile(t, inPath, buf.Bytes(), true)

	outPrefix := filepath.Join(tmpdir, "out")
	opts := snp.DefaultOpts
	opts.InputFormat = "sbtable-tsv"
	opts.MinAltDepth = 0
	opts.Cols = "counts"
	assert.NoError(t, snp.StrandOddsRatio(ctx, inPath, "tsv", outPrefix, &opts))
	got, err := ioutil.ReadFile(outPrefix + ".sor.tsv")
	assert.NoError(t, err)
	expect.EQ(t, string(got), "#CHROM\tPOS\tREF\tALT\tAS_SOR\tREF+\tREF-\tALT+\tALT-\n"+
		"chr3\t1000\tA\tT\t0.184\t10\t1\t9\t2\n"+
		"chr3\t2000\tAC\tA\t4.615\t5\t5\t5\t0\n"+
		"chr3\t2000\tAC\tACC\t.\t5\t5\t0\t0\n")
}

func TestStrandOddsRatioRegions(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	inPath := filepath.Join(tmpdir, "sample.basestrand.tsv")
	writeBaseStrandFile(t, inPath, false)
	bedPath := filepath.Join(tmpdir, "targets.bed.gz")
	writeTestFile(t, bedPath, []byte("chr1\t100\t150\nchr2\t41\t60\n"), true)

	for _, test := range []struct {
		name     string
		bedPath  string
		oneBased bool
		region   string
		expected string
	}{
		{"region", "", false, "chr1:150-250", "#CHROM\tPOS\tREF\tALT\tAS_SOR\nchr1\t200\tA\tC\t4.615\n"},
		{"singlePos", "", false, "chr1:100", "#CHROM\tPOS\tREF\tALT\tAS_SOR\nchr1\t100\tC\tT\t0.184\n"},
		{"wholeChr", "", false, "chr2", "#CHROM\tPOS\tREF\tALT\tAS_SOR\nchr2\t60\tG\tA\t0.693\n"},
		// BED starts are 0-based, so chr1:100 is outside.
		{"bed", bedPath, false, "", "#CHROM\tPOS\tREF\tALT\tAS_SOR\nchr2\t60\tG\tA\t0.693\n"},
		// Read as one-based, the same BED also covers chr1:100.
		{"bedOneBased", bedPath, true, "", "#CHROM\tPOS\tREF\tALT\tAS_SOR\nchr1\t100\tC\tT\t0.184\nchr2\t60\tG\tA\t0.693\n"},
		{"noOverlap", "", false, "chr3:1-1000", "#CHROM\tPOS\tREF\tALT\tAS_SOR\n"},
	} {
		t.Run(test.name, func(t *testing.T) {
			outPrefix := filepath.Join(tmpdir, test.name)
			opts := snp.DefaultOpts
			opts.BedPath = test.bedPath
			opts.BedOneBased = test.oneBased
			opts.Region = test.region
			assert.NoError(t, snp.StrandOddsRatio(ctx, inPath, "tsv", outPrefix, &opts))
			got, err := ioutil.ReadFile(outPrefix + ".sor.tsv")
			assert.NoError(t, err)
			expect.EQ(t, string(got), test.expected)
		})
	}
}

func TestStrandOddsRatioErrors(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	inPath := filepath.Join(tmpdir, "sample.basestrand.tsv")
	writeBaseStrandFile(t, inPath, false)
	badSBPath := filepath.Join(tmpdir, "bad.sbtable.tsv")
	writeTestFile(t, badSBPath, []byte(makeTestTsv([][]string{
		{"chr1", "1", "A", "T,G", "1,1|2,2"},
	})), false)
	outPrefix := filepath.Join(tmpdir, "out")

	for _, test := range []struct {
		name   string
		inPath string
		format string
		modify func(*snp.Opts)
		errMsg string
	}{
		{"badFormat", inPath, "vcf", func(*snp.Opts) {}, "unrecognized format"},
		{"badInputFormat", inPath, "tsv", func(o *snp.Opts) { o.InputFormat = "bam" }, "unrecognized input format"},
		{"negativeDepth", inPath, "tsv", func(o *snp.Opts) { o.MinAltDepth = -1 }, "must be nonnegative"},
		{"colsWithRio", inPath, "rio", func(o *snp.Opts) { o.Cols = "dp" }, "cannot be used with rio"},
		{"badCols", inPath, "tsv", func(o *snp.Opts) { o.Cols = "quals" }, "quals not found"},
		{"missingInput", filepath.Join(tmpdir, "missing.tsv"), "tsv", func(*snp.Opts) {}, "couldn't open"},
		{"bedAndRegion", inPath, "tsv", func(o *snp.Opts) { o.BedPath = "x.bed"; o.Region = "chr1" }, "can't be used together"},
		{"badRegion", inPath, "tsv", func(o *snp.Opts) { o.Region = "chr1:0-5" }, "out of range"},
		{"missingBed", inPath, "tsv", func(o *snp.Opts) { o.BedPath = filepath.Join(tmpdir, "missing.bed") }, "couldn't load"},
		{"badSBTable", badSBPath, "tsv", func(o *snp.Opts) { o.InputFormat = "sbtable-tsv" }, "2 ALT alleles"},
	} {
		t.Run(test.name, func(t *testing.T) {
			opts := snp.DefaultOpts
			test.modify(&opts)
			err := snp.StrandOddsRatio(ctx, test.inPath, test.format, outPrefix, &opts)
			assert.NotNil(t, err)
			assert.HasSubstr(t, err.Error(), test.errMsg)
		})
	}
}
