// Package index provides bitmap indexes for fast case lookups on event logs.
package index

import (
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/tracemine/tracemine/internal/model"
)

// CaseIndex maps each activity to a roaring bitmap of case ordinals, which
// enables O(1) "cases containing activity" lookups and efficient set
// operations (AND/OR) for multi-activity filtering. Case ordinals follow
// log order, so results are deterministic.
type CaseIndex struct {
	// ids maps case ordinal -> case id.
	ids []string

	// byActivity maps activity name -> bitmap of case ordinals.
	byActivity map[string]*roaring.Bitmap
}

// Build indexes all cases of an event log.
func Build(log *model.EventLog) *CaseIndex {
	idx := &CaseIndex{
		byActivity: make(map[string]*roaring.Bitmap),
	}

	for ordinal, caseID := range log.CaseIDs() {
		idx.ids = append(idx.ids, caseID)
		for _, e := range log.Case(caseID) {
			bm, ok := idx.byActivity[e.Activity]
			if !ok {
				bm = roaring.New()
				idx.byActivity[e.Activity] = bm
			}
			bm.Add(uint32(ordinal))
		}
	}
	return idx
}

// NumCases returns the number of indexed cases.
func (idx *CaseIndex) NumCases() int {
	return len(idx.ids)
}

// Activities returns all indexed activity names, sorted.
func (idx *CaseIndex) Activities() []string {
	out := make([]string, 0, len(idx.byActivity))
	for a := range idx.byActivity {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the bitmap of case ordinals whose case contains the
// activity. The returned bitmap is a clone and safe to mutate.
func (idx *CaseIndex) Lookup(activity string) *roaring.Bitmap {
	if bm, ok := idx.byActivity[activity]; ok {
		return bm.Clone()
	}
	return roaring.New()
}

// CasesWithAll returns ids of cases containing every given activity,
// in log order.
func (idx *CaseIndex) CasesWithAll(activities ...string) []string {
	var result *roaring.Bitmap
	for _, a := range activities {
		bm := idx.Lookup(a)
		if result == nil {
			result = bm
		} else {
			result.And(bm)
		}
	}
	return idx.resolve(result)
}

// CasesWithAny returns ids of cases containing at least one of the given
// activities, in log order.
func (idx *CaseIndex) CasesWithAny(activities ...string) []string {
	result := roaring.New()
	for _, a := range activities {
		result.Or(idx.Lookup(a))
	}
	return idx.resolve(result)
}

// resolve converts a bitmap of ordinals back to case ids.
func (idx *CaseIndex) resolve(bm *roaring.Bitmap) []string {
	if bm == nil {
		return nil
	}
	out := make([]string, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		ordinal := it.Next()
		if int(ordinal) < len(idx.ids) {
			out = append(out, idx.ids[ordinal])
		}
	}
	return out
}
