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
	"encoding/binary"
	"fmt"
	"math"

	"github.com/grailbio/strandbias/strandbias"
)

// sorRioRecord is the recordio representation of a SiteSOR.  The chromosome
// name is replaced by an index into the file's RefNames header.
type sorRioRecord struct {
	refID uint32
	site  SiteSOR
}

// cutAndAdvance() returns s[offset:offset+pieceLen], and increments offset by
// pieceLen.
func cutAndAdvance(offset *int, s []byte, pieceLen int) []byte {
	tmpSlice := s[(*offset):]
	*offset += pieceLen
	return tmpSlice[:pieceLen]
}

const (
	siteHeaderLen   = 36 // refID, pos, refCount, REF length, nAllele
	alleleHeaderLen = 19 // alt length, count, present flag
	sorLen          = 8
)

// Serialized format:
//   [0..4): refID
//   [4..12): pos
//   [12..28): refCount fwd, rev (uint64 each)
//   [28..32): length of REF
//   [32..36): number of alleles
//   REF bytes
//   for each allele:
//     [0..2): length of ALT
//     [2..18): count fwd, rev (uint64 each)
//     [18]: 1 if SOR is present
//     ALT bytes
//     if present, SOR float64 bits
func marshalSORRecord(scratch []byte, p interface{}) ([]byte, error) {
	rec := p.(*sorRioRecord)
	site := &rec.site
	if err := checkRioLimits(site); err != nil {
		return nil, err
	}
	bytesReq := siteHeaderLen + len(site.Ref)
	for _, a := range site.Alleles {
		bytesReq += alleleHeaderLen + len(a.Alt)
		if a.SOR.IsPresent() {
			bytesReq += sorLen
		}
	}
	t := scratch
	if len(t) < bytesReq {
		t = make([]byte, bytesReq)
	}
	t = t[:bytesReq]

	offset := 0
	tStart := cutAndAdvance(&offset, t, siteHeaderLen)
	binary.LittleEndian.PutUint32(tStart[0:4], rec.refID)
	binary.LittleEndian.PutUint64(tStart[4:12], uint64(site.Pos))
	binary.LittleEndian.PutUint64(tStart[12:20], uint64(site.RefCount.Fwd()))
	binary.LittleEndian.PutUint64(tStart[20:28], uint64(site.RefCount.Rev()))
	binary.LittleEndian.PutUint32(tStart[28:32], uint32(len(site.Ref)))
	binary.LittleEndian.PutUint32(tStart[32:36], uint32(len(site.Alleles)))
	copy(cutAndAdvance(&offset, t, len(site.Ref)), site.Ref)
	for _, a := range site.Alleles {
		dst := cutAndAdvance(&offset, t, alleleHeaderLen)
		binary.LittleEndian.PutUint16(dst[0:2], uint16(len(a.Alt)))
		binary.LittleEndian.PutUint64(dst[2:10], uint64(a.Count.Fwd()))
		binary.LittleEndian.PutUint64(dst[10:18], uint64(a.Count.Rev()))
		sor, present := a.SOR.Get()
		dst[18] = 0
		if present {
			dst[18] = 1
		}
		copy(cutAndAdvance(&offset, t, len(a.Alt)), a.Alt)
		if present {
			binary.LittleEndian.PutUint64(cutAndAdvance(&offset, t, sorLen), math.Float64bits(sor))
		}
	}
	return t, nil
}

// checkRioLimits returns an error if site cannot be represented in the
// serialized format.
func checkRioLimits(site *SiteSOR) error {
	if site.Pos < 0 {
		return fmt.Errorf("%s:%d: negative position", site.Chr, site.Pos)
	}
	if uint64(len(site.Ref)) > math.MaxUint32 || uint64(len(site.Alleles)) > math.MaxUint32 {
		return fmt.Errorf("%s:%d: REF or allele list too long", site.Chr, site.Pos)
	}
	for _, a := range site.Alleles {
		if len(a.Alt) > math.MaxUint16 {
			return fmt.Errorf("%s:%d: ALT too long", site.Chr, site.Pos)
		}
	}
	return nil
}

func unmarshalSORRecord(in []byte) (out interface{}, err error) {
	if len(in) < siteHeaderLen {
		return nil, fmt.Errorf("unmarshalSORRecord: truncated record (%d bytes)", len(in))
	}
	offset := 0
	inStart := cutAndAdvance(&offset, in, siteHeaderLen)
	rec := &sorRioRecord{refID: binary.LittleEndian.Uint32(inStart[0:4])}
	site := &rec.site
	site.Pos = int64(binary.LittleEndian.Uint64(inStart[4:12]))
	refFwd := binary.LittleEndian.Uint64(inStart[12:20])
	refRev := binary.LittleEndian.Uint64(inStart[20:28])
	if refFwd > math.MaxInt64 || refRev > math.MaxInt64 {
		return nil, fmt.Errorf("unmarshalSORRecord: reference count out of range")
	}
	site.RefCount = strandbias.NewStrandCount(int64(refFwd), int64(refRev))
	refLen := int(binary.LittleEndian.Uint32(inStart[28:32]))
	nAllele := int(binary.LittleEndian.Uint32(inStart[32:36]))
	if len(in)-offset < refLen {
		return nil, fmt.Errorf("unmarshalSORRecord: truncated REF")
	}
	site.Ref = string(cutAndAdvance(&offset, in, refLen))
	if nAllele > (len(in)-offset)/alleleHeaderLen {
		return nil, fmt.Errorf("unmarshalSORRecord: truncated record (%d alleles)", nAllele)
	}
	if nAllele > 0 {
		site.Alleles = make([]AlleleSOR, nAllele)
	}
	for i := range site.Alleles {
		if len(in)-offset < alleleHeaderLen {
			return nil, fmt.Errorf("unmarshalSORRecord: truncated allele %d", i)
		}
		src := cutAndAdvance(&offset, in, alleleHeaderLen)
		altLen := int(binary.LittleEndian.Uint16(src[0:2]))
		fwd := binary.LittleEndian.Uint64(src[2:10])
		rev := binary.LittleEndian.Uint64(src[10:18])
		present := src[18] != 0
		if fwd > math.MaxInt64 || rev > math.MaxInt64 {
			return nil, fmt.Errorf("unmarshalSORRecord: allele %d count out of range", i)
		}
		need := altLen
		if present {
			need += sorLen
		}
		if len(in)-offset < need {
			return nil, fmt.Errorf("unmarshalSORRecord: truncated allele %d", i)
		}
		a := &site.Alleles[i]
		a.Count = strandbias.NewStrandCount(int64(fwd), int64(rev))
		a.Alt = string(cutAndAdvance(&offset, in, altLen))
		if present {
			a.SOR = strandbias.Present(math.Float64frombits(binary.LittleEndian.Uint64(cutAndAdvance(&offset, in, sorLen))))
		}
	}
	return rec, nil
}
