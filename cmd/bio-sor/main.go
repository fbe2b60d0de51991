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
package main

/*
bio-sor computes the allele-specific strand odds ratio of every alternate
allele in a per-strand pileup.
*/

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/strandbias/pileup/snp"
)

var (
	inputFormat = flag.String("input-format", snp.DefaultOpts.InputFormat, "Input format; 'basestrand-tsv', 'strand-tsv' (inpath is the prefix of a .strand.fwd.snp.tsv/.strand.rev.snp.tsv pair), and 'sbtable-tsv' (#CHROM/POS/REF/ALT/AS_SB_TABLE) supported")
	bedPath     = flag.String("bed", snp.DefaultOpts.BedPath, "Optional input BED path; only sites inside its intervals are reported")
	bedOneBased = flag.Bool("bed-one-based", snp.DefaultOpts.BedOneBased, "Interpret -bed intervals as one-based [start, end] instead of zero-based [start, end)")
	region      = flag.String("region", snp.DefaultOpts.Region, "Restrict output to the specified region. Format as <contig ID>:<1-based first pos>-<last pos>, <contig ID>:<1-based pos>, or just <contig ID>; can't be combined with -bed")
	cols        = flag.String("cols", snp.DefaultOpts.Cols, "Optional output TSV column sets. #CHROM/POS/REF/ALT/AS_SOR are always present. Currently supported sets are 'counts' and 'dp'")
	format      = flag.String("format", "tsv", "Output format; 'tsv', 'tsv-bgz', and 'rio' supported")
	minAltDepth = flag.Int("min-alt-depth", snp.DefaultOpts.MinAltDepth, "Alternate alleles supported by fewer reads are not reported; 0 reports zero-depth alleles as '.'")
	outPrefix   = flag.String("out", "bio-sor", "Output path prefix")
	parallelism = flag.Int("parallelism", snp.DefaultOpts.Parallelism, "Maximum number of simultaneous (local) jobs; 0 = runtime.NumCPU()")
)

func bioSORUsage() {
	fmt.Printf("Usage: %s [OPTIONS] inpath\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = bioSORUsage
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() != 1 {
		log.Fatalf("Expected exactly one positional argument (inpath); please check flag syntax: '%s'", strings.Join(flag.Args(), " "))
	}
	ctx := vcontext.Background()
	opts := snp.Opts{
		InputFormat: *inputFormat,
		BedPath:     *bedPath,
		BedOneBased: *bedOneBased,
		Region:      *region,
		Cols:        *cols,
		MinAltDepth: *minAltDepth,
		Parallelism: *parallelism,
	}
	if err := snp.StrandOddsRatio(ctx, flag.Arg(0), *format, *outPrefix, &opts); err != nil {
		log.Panicf("%v", err)
	}
	log.Debug.Printf("exiting")
}
