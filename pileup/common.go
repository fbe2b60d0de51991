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
package pileup

import (
	"fmt"
	"strings"
)

// Common pileup components.

// These constants index the per-base count arrays of pileup formats, and are
// the natural values for A/C/G/T in a packed 2-bit representation.
const (
	// BaseA represents an A base.
	BaseA byte = iota
	// BaseC represents an C base.
	BaseC
	// BaseG represents an G base.
	BaseG
	// BaseT represents an T base.
	BaseT
	// BaseX is a catch-all.
	BaseX
)

// NBase is the number of regular base types.
const NBase = 4

// EnumToASCIITable is the A/C/G/T/X -> ASCII mapping, with X rendered as 'N'.
var EnumToASCIITable = [...]byte{'A', 'C', 'G', 'T', 'N'}

// ASCIIToEnum returns the A/C/G/T/X enum of an ASCII base.  Lowercase
// (soft-masked) bases map like their uppercase forms; everything else is
// BaseX.
func ASCIIToEnum(c byte) byte {
	switch c {
	case 'A', 'a':
		return BaseA
	case 'C', 'c':
		return BaseC
	case 'G', 'g':
		return BaseG
	case 'T', 't':
		return BaseT
	}
	return BaseX
}

// Strand indexes of per-(base, strand) count arrays.
const (
	StrandFwd = 0
	StrandRev = 1
)

// StrandToASCIITable is the StrandFwd/StrandRev -> ASCII mapping.
var StrandToASCIITable = [...]byte{'+', '-'}

// ParseCols parses a column-set-descriptor string given on the command line
// (colsParam) into an integer bitset.  colNameMap maps each column-set name to
// its (nonzero) bit.
//
// Two forms are accepted:
// 1. Every part has a '+' or a '-' in front.  These are patches to
//    defaultColBitset.
// 2. No part has a '+' or a '-' in front.  The default is ignored and the
//    parts are the full set.
func ParseCols(colsParam string, colNameMap map[string]int, defaultColBitset int) (colBitset int, err error) {
	if colsParam == "" {
		return defaultColBitset, nil
	}
	parts := strings.Split(colsParam, ",")
	patch := isPatch(parts[0])
	if patch {
		colBitset = defaultColBitset
	}
	for _, part := range parts {
		if isPatch(part) != patch {
			return 0, fmt.Errorf("ParseCols: either all terms in column set descriptor must be preceded by +/-, or none can be")
		}
		name := part
		if patch {
			name = part[1:]
		}
		v := colNameMap[name]
		if v == 0 {
			return 0, fmt.Errorf("ParseCols: %v not found", name)
		}
		if patch && part[0] == '-' {
			colBitset &= ^v
		} else {
			colBitset |= v
		}
	}
	return colBitset, nil
}

func isPatch(part string) bool {
	return len(part) > 0 && (part[0] == '+' || part[0] == '-')
}
