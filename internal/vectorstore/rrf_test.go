package vectorstore

import "testing"

func TestFuseRRF_PrefersDocumentPresentInBothLists(t *testing.T) {
	dense := []ScoredEntity{{EntityID: "a"}, {EntityID: "b"}, {EntityID: "c"}}
	sparse := []ScoredEntity{{EntityID: "c"}, {EntityID: "a"}, {EntityID: "d"}}

	fused := fuseRRF(dense, sparse, DefaultRRFConstant, 10)
	if len(fused) != 4 {
		t.Fatalf("expected 4 fused entities, got %d", len(fused))
	}
	if fused[0].EntityID != "a" {
		t.Fatalf("expected 'a' (rank 1 dense, rank 2 sparse) to win, got %q", fused[0].EntityID)
	}
}

func TestFuseRRF_TruncatesToK(t *testing.T) {
	dense := []ScoredEntity{{EntityID: "a"}, {EntityID: "b"}, {EntityID: "c"}}
	fused := fuseRRF(dense, nil, DefaultRRFConstant, 2)
	if len(fused) != 2 {
		t.Fatalf("expected truncation to k=2, got %d", len(fused))
	}
}

func TestFuseRRF_TiesBreakByEntityID(t *testing.T) {
	dense := []ScoredEntity{{EntityID: "z"}}
	sparse := []ScoredEntity{{EntityID: "a"}}
	fused := fuseRRF(dense, sparse, DefaultRRFConstant, 10)
	if fused[0].EntityID != "a" {
		t.Fatalf("expected equal-score tie to break lexicographically, got order starting with %q", fused[0].EntityID)
	}
}

func TestFuseRRF_ZeroKRRFFallsBackToDefault(t *testing.T) {
	dense := []ScoredEntity{{EntityID: "a"}}
	fused := fuseRRF(dense, nil, 0, 10)
	want := 1.0 / float64(DefaultRRFConstant+1)
	if fused[0].Score != want {
		t.Fatalf("expected default k_rrf=%d to apply, got score %v", DefaultRRFConstant, fused[0].Score)
	}
}
