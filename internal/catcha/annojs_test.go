package catcha

import (
	"encoding/json"
	"testing"
	"time"

	"catchanno/api/internal/perms"
)

func TestToAnnotatorJS(t *testing.T) {
	anno := validAnnotation()
	anno.Created = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	anno.Modified = time.Date(2024, 3, 2, 11, 30, 0, 0, time.UTC)
	anno.Platform = Platform{ContextID: "course-1", CollectionID: "assignment-2"}
	anno.Permissions = &perms.Permissions{
		CanRead:   []string{"user-1"},
		CanUpdate: []string{"user-1"},
		CanDelete: []string{"user-1"},
		CanAdmin:  []string{"user-1"},
	}
	anno.Target.Items[0].Selector = json.RawMessage(`{"start":"/p[1]","end":"/p[2]"}`)

	annojs, err := ToAnnotatorJS(anno)
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}

	if annojs.ID != "anno-1" {
		t.Errorf("id = %q", annojs.ID)
	}
	if annojs.Text != "a comment" {
		t.Errorf("text = %q", annojs.Text)
	}
	if len(annojs.Tags) != 2 {
		t.Errorf("tags = %v", annojs.Tags)
	}
	if annojs.User.ID != "user-1" {
		t.Errorf("user.id = %q", annojs.User.ID)
	}
	if annojs.URI != "http://example.com/page" {
		t.Errorf("uri = %q", annojs.URI)
	}
	if annojs.Media != "text" {
		t.Errorf("media = %q", annojs.Media)
	}
	if annojs.Parent != "0" {
		t.Errorf("parent = %q", annojs.Parent)
	}
	if annojs.ContextID != "course-1" || annojs.CollectionID != "assignment-2" {
		t.Errorf("platform ids = %q / %q", annojs.ContextID, annojs.CollectionID)
	}
	if len(annojs.Ranges) != 1 {
		t.Fatalf("ranges = %v", annojs.Ranges)
	}
	if annojs.Created != "2024-03-01T10:00:00Z" {
		t.Errorf("created = %q", annojs.Created)
	}
	if annojs.Updated != "2024-03-02T11:30:00Z" {
		t.Errorf("updated = %q", annojs.Updated)
	}
	if len(annojs.Permissions.Update) != 1 || annojs.Permissions.Update[0] != "user-1" {
		t.Errorf("permissions.update = %v", annojs.Permissions.Update)
	}
}

func TestToAnnotatorJSMissingPermissionsBecomeEmptyLists(t *testing.T) {
	anno := validAnnotation()
	anno.Permissions = nil

	annojs, err := ToAnnotatorJS(anno)
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if annojs.Permissions.Read == nil || annojs.Permissions.Admin == nil {
		t.Error("permission lists must serialize as [], not null")
	}
}

func TestToAnnotatorJSRefusesIncompleteRecords(t *testing.T) {
	anno := validAnnotation()
	anno.Creator.ID = ""
	if _, err := ToAnnotatorJS(anno); err == nil {
		t.Error("expected error for missing creator id")
	}

	anno = validAnnotation()
	anno.Target.Items = nil
	if _, err := ToAnnotatorJS(anno); err == nil {
		t.Error("expected error for missing targets")
	}
}

func TestFromAnnotatorJSRoundTrip(t *testing.T) {
	original := validAnnotation()
	original.Created = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	original.Modified = time.Date(2024, 3, 2, 11, 30, 0, 0, time.UTC)
	original.Permissions = &perms.Permissions{
		CanRead:   []string{},
		CanUpdate: []string{"user-1"},
		CanDelete: []string{"user-1"},
		CanAdmin:  []string{"user-1"},
	}

	annojs, err := ToAnnotatorJS(original)
	if err != nil {
		t.Fatalf("forward conversion failed: %v", err)
	}
	back, err := FromAnnotatorJS(annojs)
	if err != nil {
		t.Fatalf("reverse conversion failed: %v", err)
	}

	if back.ID != original.ID {
		t.Errorf("id = %q, want %q", back.ID, original.ID)
	}
	if back.Creator.ID != original.Creator.ID {
		t.Errorf("creator = %q, want %q", back.Creator.ID, original.Creator.ID)
	}
	if back.TextValue() != original.TextValue() {
		t.Errorf("text = %q, want %q", back.TextValue(), original.TextValue())
	}
	if len(back.Tags()) != len(original.Tags()) {
		t.Errorf("tags = %v, want %v", back.Tags(), original.Tags())
	}
	if got := back.TargetSources(); len(got) != 1 || got[0] != "http://example.com/page" {
		t.Errorf("target sources = %v", got)
	}
	if !back.Created.Equal(original.Created) {
		t.Errorf("created = %v, want %v", back.Created, original.Created)
	}
	if back.SchemaVersion != SchemaVersion {
		t.Errorf("schema_version = %q", back.SchemaVersion)
	}
}

func TestFromAnnotatorJSDefaultsMediaToText(t *testing.T) {
	annojs := &AnnoJS{
		ID:   "anno-2",
		Text: "hello",
		User: AnnoJSUser{ID: "user-1"},
		URI:  "http://example.com/page",
	}

	anno, err := FromAnnotatorJS(annojs)
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	if got := anno.TargetMedias(); len(got) != 1 || got[0] != "Text" {
		t.Errorf("media = %v", got)
	}
}

func TestFromAnnotatorJSValidatesResult(t *testing.T) {
	annojs := &AnnoJS{
		ID:   "anno-3",
		Text: "hello",
		URI:  "http://example.com/page",
	}
	if _, err := FromAnnotatorJS(annojs); err == nil {
		t.Error("expected validation error for missing user id")
	}
}
