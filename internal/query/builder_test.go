package query

import (
	"net/url"
	"testing"
)

func TestParseValuesListsSplitOnCommasAndRepeats(t *testing.T) {
	values := url.Values{}
	values.Add("tags", "tag-a,tag-b")
	values.Add("tags", "tag-c")
	values.Add("username", " alice , bob ")

	p := ParseValues(values)

	if len(p.Tags) != 3 || p.Tags[0] != "tag-a" || p.Tags[2] != "tag-c" {
		t.Errorf("tags = %v", p.Tags)
	}
	if len(p.Usernames) != 2 || p.Usernames[0] != "alice" || p.Usernames[1] != "bob" {
		t.Errorf("usernames = %v", p.Usernames)
	}
}

func TestParseValuesPaginationDefaults(t *testing.T) {
	p := ParseValues(url.Values{})
	if p.Limit != DefaultLimit {
		t.Errorf("limit = %d, want %d", p.Limit, DefaultLimit)
	}
	if p.Offset != 0 {
		t.Errorf("offset = %d, want 0", p.Offset)
	}
}

func TestParseValuesUnparsablePaginationFallsBack(t *testing.T) {
	values := url.Values{}
	values.Set("limit", "ten")
	values.Set("offset", "x")

	p := ParseValues(values)
	if p.Limit != DefaultLimit {
		t.Errorf("limit = %d, want %d", p.Limit, DefaultLimit)
	}
	if p.Offset != 0 {
		t.Errorf("offset = %d, want 0", p.Offset)
	}
}

func TestParseValuesNegativeLimitMeansAll(t *testing.T) {
	values := url.Values{}
	values.Set("limit", "-1")

	p := ParseValues(values)
	if p.Limit != -1 {
		t.Errorf("limit = %d, want -1", p.Limit)
	}
}

func TestBuildCombinesFiltersWithAnd(t *testing.T) {
	p := Params{
		UserIDs:   []string{"user-1"},
		Tags:      []string{"tag-a"},
		ContextID: "course-1",
	}

	pred := Build(p)
	if len(pred) != 3 {
		t.Fatalf("expected 3 members, got %d", len(pred))
	}

	matching := Record{
		CreatorID: "user-1",
		Tags:      []string{"tag-a", "tag-b"},
		ContextID: "course-1",
	}
	if !pred.Matches(matching) {
		t.Error("expected record to satisfy all filters")
	}

	wrongContext := matching
	wrongContext.ContextID = "course-2"
	if pred.Matches(wrongContext) {
		t.Error("record failing one filter must not match")
	}
}

func TestBuildCollectionIDOnlyUnderContextID(t *testing.T) {
	withContext := Build(Params{ContextID: "course-1", CollectionID: "assignment-2"})
	if len(withContext) != 2 {
		t.Fatalf("expected contextId and collectionId members, got %d", len(withContext))
	}

	withoutContext := Build(Params{CollectionID: "assignment-2"})
	if len(withoutContext) != 0 {
		t.Errorf("collectionId without contextId must be ignored, got %d members", len(withoutContext))
	}
}

func TestBuildEmptyParamsIsIdentity(t *testing.T) {
	pred := Build(Params{})
	if len(pred) != 0 {
		t.Fatalf("expected no members, got %d", len(pred))
	}
	if !pred.Matches(Record{}) {
		t.Error("empty predicate must match everything")
	}
}

func TestBuildLeavesTextToTheEngine(t *testing.T) {
	pred := Build(Params{Text: "quick"})
	if len(pred) != 0 {
		t.Errorf("text must not produce a predicate member, got %d", len(pred))
	}
}
