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
	"strconv"
	"strings"
)

const (
	// Key is the annotation name of the statistic, for both the per-allele
	// and the single-table paths.
	Key = "AS_SOR"
	// RawKey is the annotation name of the raw per-allele strand counts
	// parsed by ParseSBTable.
	RawKey = "AS_SB_TABLE"
	// MissingValue is rendered in place of an Absent value.
	MissingValue = "."
)

// formatPrecision is the number of digits after the decimal point.
const formatPrecision = 3

// Annotation is a single key=value output field.
type Annotation struct {
	Key   string
	Value string
}

func (a Annotation) String() string {
	return a.Key + "=" + a.Value
}

// Format renders sor with fixed precision.
func Format(sor float64) string {
	return strconv.FormatFloat(sor, 'f', formatPrecision, 64)
}

// FormatValue renders v, using MissingValue when v is Absent.
func FormatValue(v Value) string {
	sor, ok := v.Get()
	if !ok {
		return MissingValue
	}
	return Format(sor)
}

// Annotate computes the SOR annotation of a table that the caller has
// already pooled across alleles.
func Annotate(t Table) Annotation {
	return Annotation{Key: Key, Value: Format(CalculateSOR(t))}
}

// Annotate renders m as an AS_SOR annotation with one comma-separated value
// per allele in alts.  Alleles missing from m are rendered as MissingValue.
func (m AlleleMap) Annotate(alts []string) Annotation {
	values := make([]string, len(alts))
	for i, a := range alts {
		values[i] = FormatValue(m[a])
	}
	return Annotation{Key: Key, Value: strings.Join(values, ",")}
}

// Formatted returns the rendered value of each allele in m.
func (m AlleleMap) Formatted() map[string]string {
	out := make(map[string]string, len(m))
	for a, v := range m {
		out[a] = FormatValue(v)
	}
	return out
}
