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

/*
Given a per-strand pileup (e.g. the basestrand.tsv output of bio-pileup), or
a table of raw AS_SB_TABLE strand counts, bio-sor reports the
allele-specific symmetric odds ratio strand-bias annotation (AS_SOR) of each
alternate allele at each position.

The reported value is ln-scaled; alleles with no supporting reads are
reported as ".".

Sample usage:
bio-sor \
    --out output-prefix \
    --cols counts \
    my.basestrand.tsv
*/
package main
