package query

import "testing"

func sampleRecord() Record {
	return Record{
		ID:             "anno-1",
		CreatorID:      "user-1",
		CreatorName:    "nameless",
		Tags:           []string{"tag-a", "tag-b"},
		TargetSources:  []string{"http://example.com/page"},
		TargetMedias:   []string{"Text"},
		CanRead:        []string{},
		PlatformName:   "edx",
		ContextID:      "course-1",
		CollectionID:   "assignment-2",
		TargetSourceID: "source-9",
		BodyText:       "The Quick Brown Fox",
	}
}

func TestEquals(t *testing.T) {
	r := sampleRecord()

	if !(Equals{Field: FieldPlatformName, Value: "edx"}).Matches(r) {
		t.Error("expected platform match")
	}
	if (Equals{Field: FieldPlatformName, Value: "canvas"}).Matches(r) {
		t.Error("unexpected platform match")
	}
	if (Equals{Field: FieldTags, Value: "tag-a"}).Matches(r) {
		t.Error("list fields are not scalar comparable")
	}
}

func TestAnyOf(t *testing.T) {
	r := sampleRecord()

	if !(AnyOf{Field: FieldCreatorID, Values: []string{"user-9", "user-1"}}).Matches(r) {
		t.Error("expected creator match")
	}
	if (AnyOf{Field: FieldCreatorID, Values: []string{"user-9"}}).Matches(r) {
		t.Error("unexpected creator match")
	}
	if (AnyOf{Field: FieldCreatorID, Values: nil}).Matches(r) {
		t.Error("empty value set matches nothing")
	}
}

func TestContainsAny(t *testing.T) {
	r := sampleRecord()

	if !(ContainsAny{Field: FieldTags, Values: []string{"tag-b", "tag-z"}}).Matches(r) {
		t.Error("expected tag overlap")
	}
	if (ContainsAny{Field: FieldTags, Values: []string{"tag-z"}}).Matches(r) {
		t.Error("unexpected tag overlap")
	}
	if !(ContainsAny{Field: FieldTargetMedias, Values: []string{"Text"}}).Matches(r) {
		t.Error("expected media overlap")
	}
}

func TestTextMatchCaseInsensitive(t *testing.T) {
	r := sampleRecord()

	if !(TextMatch{Text: "quick brown"}).Matches(r) {
		t.Error("expected case-insensitive substring match")
	}
	if (TextMatch{Text: "lazy dog"}).Matches(r) {
		t.Error("unexpected text match")
	}
}

func TestReadableBy(t *testing.T) {
	public := sampleRecord()
	if !(ReadableBy{UserID: "anyone"}).Matches(public) {
		t.Error("empty can_read should be readable by everyone")
	}

	restricted := sampleRecord()
	restricted.CanRead = []string{"user-1"}
	if !(ReadableBy{UserID: "user-1"}).Matches(restricted) {
		t.Error("listed user should read restricted record")
	}
	if (ReadableBy{UserID: "user-2"}).Matches(restricted) {
		t.Error("unlisted user should not read restricted record")
	}
}

func TestAndComposition(t *testing.T) {
	r := sampleRecord()

	both := And{
		Equals{Field: FieldContextID, Value: "course-1"},
		ContainsAny{Field: FieldTags, Values: []string{"tag-a"}},
	}
	if !both.Matches(r) {
		t.Error("expected conjunction to match")
	}

	mixed := And{
		Equals{Field: FieldContextID, Value: "course-1"},
		Equals{Field: FieldCollectionID, Value: "other"},
	}
	if mixed.Matches(r) {
		t.Error("one failing member should fail the conjunction")
	}

	if !(And{}).Matches(r) {
		t.Error("empty conjunction is the identity predicate")
	}
}
