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
	"sort"
)

// Value is the per-allele result: either a computed statistic or Absent when
// the allele had no supporting reads.  The zero Value is Absent.
type Value struct {
	sor     float64
	present bool
}

// Present returns a Value holding sor.
func Present(sor float64) Value {
	return Value{sor: sor, present: true}
}

// Absent returns the Value of an allele with no evidence.  It is distinct
// from Present(0).
func Absent() Value {
	return Value{}
}

// Get returns the statistic and whether it is present.
func (v Value) Get() (float64, bool) {
	return v.sor, v.present
}

// IsPresent reports whether v holds a computed statistic.
func (v Value) IsPresent() bool {
	return v.present
}

// AlleleMap maps alternate-allele identifiers to their Values.  Identifiers
// are opaque to this package.
type AlleleMap map[string]Value

// Alleles returns the keys of m in sorted order.
func (m AlleleMap) Alleles() []string {
	alleles := make([]string, 0, len(m))
	for a := range m {
		alleles = append(alleles, a)
	}
	sort.Strings(alleles)
	return alleles
}

// StrandCounter supplies the strand counts of one site: the reference allele
// and every alternate allele observed there.
type StrandCounter interface {
	StrandCounts() (ref StrandCount, alts map[string]StrandCount)
}

// Reduce computes the AS_SOR value of each alternate allele against the
// shared reference count.  An allele with no reads on either strand maps to
// Absent.
func Reduce(ref StrandCount, alts map[string]StrandCount) AlleleMap {
	m := make(AlleleMap, len(alts))
	for allele, alt := range alts {
		if alt.Total() == 0 {
			m[allele] = Absent()
			continue
		}
		m[allele] = Present(CalculateSOR(NewTable(ref, alt)))
	}
	return m
}

// ReduceSite is Reduce applied to the counts supplied by c.
func ReduceSite(c StrandCounter) AlleleMap {
	return Reduce(c.StrandCounts())
}
