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
	"math"
)

// ZeroCountSubstitute replaces every zero cell of a table before the ratios
// are taken.  With it, 0/0 evaluates to the neutral 1.0, tables without zero
// cells are unaffected, and a lone zero yields a large but finite statistic.
const ZeroCountSubstitute = 0.5

// CalculateSOR returns the natural-log-scaled symmetric odds ratio of t.  The
// result is finite for every table, including the all-zero one (which
// evaluates to ln(2), the same as any balanced table).
func CalculateSOR(t Table) float64 {
	a := cellValue(t.cells[RefRow][Fwd])
	b := cellValue(t.cells[RefRow][Rev])
	c := cellValue(t.cells[AltRow][Fwd])
	d := cellValue(t.cells[AltRow][Rev])

	// R + 1/R is smallest (2) when both rows have the same strand balance.
	oddsRatio := (a * d) / (b * c)
	symmetric := oddsRatio + 1/oddsRatio

	refRatio := math.Min(a, b) / math.Max(a, b)
	altRatio := math.Min(c, d) / math.Max(c, d)
	return math.Log(symmetric * refRatio / altRatio)
}

func cellValue(n int64) float64 {
	if n == 0 {
		return ZeroCountSubstitute
	}
	return float64(n)
}
