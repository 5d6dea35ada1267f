package vectorstore

import "sort"

// DefaultRRFConstant is k_rrf's default (spec §4.6).
const DefaultRRFConstant = 60

// fuseRRF merges two independently-ranked candidate lists by Reciprocal Rank
// Fusion: score(d) = Σ_src 1/(kRRF + rank_src(d)), rank starting at 1. A
// document absent from one list simply does not contribute that term.
// Ties break by entity_id so fusion is deterministic across runs.
func fuseRRF(dense, sparse []ScoredEntity, kRRF, k int) []ScoredEntity {
	if kRRF <= 0 {
		kRRF = DefaultRRFConstant
	}
	scores := make(map[string]float64)
	order := make([]string, 0, len(dense)+len(sparse))

	add := func(list []ScoredEntity) {
		for rank, hit := range list {
			if _, seen := scores[hit.EntityID]; !seen {
				order = append(order, hit.EntityID)
			}
			scores[hit.EntityID] += 1.0 / float64(kRRF+rank+1)
		}
	}
	add(dense)
	add(sparse)

	fused := make([]ScoredEntity, 0, len(order))
	for _, id := range order {
		fused = append(fused, ScoredEntity{EntityID: id, Score: scores[id]})
	}
	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].EntityID < fused[j].EntityID
	})
	if k > 0 && len(fused) > k {
		fused = fused[:k]
	}
	return fused
}
