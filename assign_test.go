package bytetrack

import "testing"

func hasMatch(matches []Match, row, col int) bool {
	for _, m := range matches {
		if m.Row == row && m.Col == col {
			return true
		}
	}
	return false
}

func TestAssignPerfectMatches(t *testing.T) {
	// 2 tracks, 2 detections, each unambiguously closest to one detection.
	cost := [][]float64{
		{0.0, 0.9},
		{0.9, 0.0},
	}
	matches, unmatchedRows, unmatchedCols := Assign(cost, 0.5)
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d: %v", len(matches), matches)
	}
	if !hasMatch(matches, 0, 0) || !hasMatch(matches, 1, 1) {
		t.Errorf("expected diagonal matches, got %v", matches)
	}
	if len(unmatchedRows) != 0 || len(unmatchedCols) != 0 {
		t.Errorf("expected no unmatched rows/cols, got rows=%v cols=%v", unmatchedRows, unmatchedCols)
	}
}

func TestAssignGatingExcludesExpensivePairs(t *testing.T) {
	cost := [][]float64{
		{0.9},
	}
	matches, unmatchedRows, unmatchedCols := Assign(cost, 0.5)
	if len(matches) != 0 {
		t.Fatalf("expected no matches above threshold, got %v", matches)
	}
	if len(unmatchedRows) != 1 || len(unmatchedCols) != 1 {
		t.Errorf("expected both row and column unmatched, got rows=%v cols=%v", unmatchedRows, unmatchedCols)
	}
}

func TestAssignEmptyRows(t *testing.T) {
	matches, unmatchedRows, unmatchedCols := Assign(nil, 0.5)
	if matches != nil || unmatchedRows != nil || unmatchedCols != nil {
		t.Errorf("expected all nils for an empty cost matrix, got matches=%v rows=%v cols=%v", matches, unmatchedRows, unmatchedCols)
	}
}

func TestAssignEmptyColumns(t *testing.T) {
	cost := [][]float64{{}, {}}
	matches, unmatchedRows, unmatchedCols := Assign(cost, 0.5)
	if len(matches) != 0 {
		t.Fatalf("expected no matches, got %v", matches)
	}
	if len(unmatchedRows) != 2 {
		t.Errorf("expected 2 unmatched rows, got %v", unmatchedRows)
	}
	if len(unmatchedCols) != 0 {
		t.Errorf("expected no unmatched columns, got %v", unmatchedCols)
	}
}

func TestAssignRectangularMoreRowsThanCols(t *testing.T) {
	cost := [][]float64{
		{0.1},
		{0.05},
		{0.9},
	}
	matches, unmatchedRows, _ := Assign(cost, 0.5)
	if len(matches) != 1 {
		t.Fatalf("expected exactly 1 match, got %v", matches)
	}
	if !hasMatch(matches, 1, 0) {
		t.Errorf("expected the cheaper row (1) to win the single column, got %v", matches)
	}
	if len(unmatchedRows) != 2 {
		t.Errorf("expected 2 unmatched rows, got %v", unmatchedRows)
	}
}
