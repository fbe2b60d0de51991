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

	"github.com/pkg/errors"
)

const (
	alleleSeparator = "|"
	strandSeparator = ","
)

// ParseSBTable parses the raw allele-specific strand table written by
// variant callers in the AS_SB_TABLE annotation, "refF,refR|altF,altR|...".
// At least one alternate allele is required, and every count must be a
// non-negative integer.
func ParseSBTable(s string) (ref StrandCount, alts []StrandCount, err error) {
	parts := strings.Split(s, alleleSeparator)
	if len(parts) < 2 {
		return ref, nil, errors.Errorf("malformed %s %q: want at least one alternate allele", RawKey, s)
	}
	counts := make([]StrandCount, len(parts))
	for i, part := range parts {
		if counts[i], err = parseStrandCount(part); err != nil {
			return ref, nil, errors.Wrapf(err, "malformed %s %q", RawKey, s)
		}
	}
	return counts[0], counts[1:], nil
}

func parseStrandCount(s string) (StrandCount, error) {
	fields := strings.Split(s, strandSeparator)
	if len(fields) != 2 {
		return StrandCount{}, errors.Errorf("allele entry %q: want 2 strand counts, got %d", s, len(fields))
	}
	var n [2]int64
	for i, f := range fields {
		v, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil {
			return StrandCount{}, errors.Wrapf(err, "allele entry %q", s)
		}
		if v < 0 {
			return StrandCount{}, errors.Errorf("allele entry %q: negative count %d", s, v)
		}
		n[i] = v
	}
	return NewStrandCount(n[Fwd], n[Rev]), nil
}

// FormatSBTable is the inverse of ParseSBTable.
func FormatSBTable(ref StrandCount, alts []StrandCount) string {
	parts := make([]string, 0, len(alts)+1)
	parts = append(parts, ref.String())
	for _, alt := range alts {
		parts = append(parts, alt.String())
	}
	return strings.Join(parts, alleleSeparator)
}
