// Package catcha holds the canonical web annotation representation, its
// validator, and the AnnotatorJS projection used by legacy clients.
package catcha

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"catchanno/api/internal/perms"
)

const (
	SchemaVersion = "catch_v1.0"
	ContextIRI    = "http://catch-dev.harvardx.harvard.edu/catch-context.jsonld"

	PurposeCommenting = "commenting"
	PurposeTagging    = "tagging"
	PurposeReplying   = "replying"
)

type Creator struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type Platform struct {
	Name           string `json:"platform_name,omitempty"`
	ContextID      string `json:"contextId,omitempty"`
	CollectionID   string `json:"collectionId,omitempty"`
	TargetSourceID string `json:"target_source_id,omitempty"`
}

type BodyItem struct {
	Type    string `json:"type"`
	Purpose string `json:"purpose,omitempty"`
	Value   string `json:"value"`
	Format  string `json:"format,omitempty"`
}

type Body struct {
	Type  string     `json:"type"`
	Items []BodyItem `json:"items"`
}

type TargetItem struct {
	Source   string          `json:"source"`
	Type     string          `json:"type,omitempty"`
	Selector json.RawMessage `json:"selector,omitempty"`
}

type Target struct {
	Type  string       `json:"type"`
	Items []TargetItem `json:"items"`
}

// Annotation is the canonical, schema-versioned record. It is persisted
// and returned to clients as-is; no serialization step beyond JSON.
type Annotation struct {
	Context       string            `json:"@context,omitempty"`
	ID            string            `json:"id"`
	Type          string            `json:"type"`
	SchemaVersion string            `json:"schema_version,omitempty"`
	Created       time.Time         `json:"created,omitempty"`
	Modified      time.Time         `json:"modified,omitempty"`
	Creator       Creator           `json:"creator"`
	Permissions   *perms.Permissions `json:"permissions,omitempty"`
	Platform      Platform          `json:"platform,omitempty"`
	Body          Body              `json:"body"`
	Target        Target            `json:"target"`
}

// ValidationError reports malformed or incomplete annotation input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid annotation: " + e.Reason
	}
	return fmt.Sprintf("invalid annotation field %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Parse decodes raw JSON into a canonical annotation and validates it.
func Parse(raw []byte) (*Annotation, error) {
	if len(raw) == 0 {
		return nil, invalid("", "empty input")
	}
	var anno Annotation
	if err := json.Unmarshal(raw, &anno); err != nil {
		return nil, &ValidationError{Reason: "malformed json: " + err.Error()}
	}
	if err := Validate(&anno); err != nil {
		return nil, err
	}
	return &anno, nil
}

// Validate checks the structural invariants of a canonical annotation.
// Permissions may be absent; the CRUD engine injects defaults at create.
func Validate(anno *Annotation) error {
	if strings.TrimSpace(anno.ID) == "" {
		return invalid("id", "required")
	}
	if anno.Type != "" && anno.Type != "Annotation" {
		return invalid("type", "must be 'Annotation'")
	}
	if strings.TrimSpace(anno.Creator.ID) == "" {
		return invalid("creator.id", "required")
	}
	for i, item := range anno.Body.Items {
		switch item.Purpose {
		case "", PurposeCommenting, PurposeTagging, PurposeReplying:
		default:
			return invalid(fmt.Sprintf("body.items[%d].purpose", i), "unknown purpose "+item.Purpose)
		}
		if item.Purpose == PurposeTagging && strings.TrimSpace(item.Value) == "" {
			return invalid(fmt.Sprintf("body.items[%d].value", i), "empty tag")
		}
	}
	for i, item := range anno.Target.Items {
		if strings.TrimSpace(item.Source) == "" {
			return invalid(fmt.Sprintf("target.items[%d].source", i), "required")
		}
	}
	return nil
}

// ApplyDefaults fills type, context and schema_version when absent.
func ApplyDefaults(anno *Annotation) {
	if anno.Type == "" {
		anno.Type = "Annotation"
	}
	if anno.Context == "" {
		anno.Context = ContextIRI
	}
	if anno.SchemaVersion == "" {
		anno.SchemaVersion = SchemaVersion
	}
}

// TextValue concatenates the commenting bodies into one text blob. Items
// without a purpose count as commenting.
func (a *Annotation) TextValue() string {
	var parts []string
	for _, item := range a.Body.Items {
		if item.Purpose == "" || item.Purpose == PurposeCommenting || item.Purpose == PurposeReplying {
			if item.Value != "" {
				parts = append(parts, item.Value)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// Tags returns the tagging body values in document order.
func (a *Annotation) Tags() []string {
	tags := make([]string, 0)
	for _, item := range a.Body.Items {
		if item.Purpose == PurposeTagging {
			tags = append(tags, item.Value)
		}
	}
	return tags
}

// TargetSources returns the target source identifiers in document order.
func (a *Annotation) TargetSources() []string {
	sources := make([]string, 0, len(a.Target.Items))
	for _, item := range a.Target.Items {
		sources = append(sources, item.Source)
	}
	return sources
}

// TargetMedias returns the distinct target media types in document order.
func (a *Annotation) TargetMedias() []string {
	seen := make(map[string]struct{}, len(a.Target.Items))
	medias := make([]string, 0, len(a.Target.Items))
	for _, item := range a.Target.Items {
		if item.Type == "" {
			continue
		}
		if _, ok := seen[item.Type]; ok {
			continue
		}
		seen[item.Type] = struct{}{}
		medias = append(medias, item.Type)
	}
	return medias
}

// EffectivePermissions returns the stored permissions or a zero value
// when the record carries none.
func (a *Annotation) EffectivePermissions() perms.Permissions {
	if a.Permissions == nil {
		return perms.Permissions{}
	}
	return *a.Permissions
}
