package search

import "testing"

func TestMatchingIDsWithoutMeiliSignalsFallback(t *testing.T) {
	svc := NewService(nil)

	ids, ok := svc.MatchingIDs("anything")
	if ok {
		t.Error("nil index must report ok=false")
	}
	if ids != nil {
		t.Errorf("ids = %v", ids)
	}
}

func TestIndexOperationsWithoutMeiliAreNoOps(t *testing.T) {
	svc := NewService(nil)

	svc.IndexAnnotation(Record{ID: "anno-1"})
	svc.DeleteAnnotation("anno-1")
	svc.ReindexAll([]Record{{ID: "anno-1"}})
}
