package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"catchanno/api/internal/auth"
	"catchanno/api/internal/cache"
	"catchanno/api/internal/catcha"
	"catchanno/api/internal/config"
	"catchanno/api/internal/perms"
	"catchanno/api/internal/query"
	"catchanno/api/internal/search"
	"catchanno/api/internal/stash"
	"catchanno/api/internal/store"
)

// Recognized output formats. The canonical record needs no conversion;
// the legacy format is projected per record.
const (
	FormatCatchAnno   = "CATCH_ANNO_FORMAT"
	FormatAnnotatorJS = "ANNOTATORJS_FORMAT"
)

// Caller is the requesting context. A missing token maps to the
// explicit anonymous caller, which may search and read public records
// but never mutate.
type Caller struct {
	UserID    string
	Name      string
	Overrides []string
	Anonymous bool
}

// CanReadAll reports whether the caller bypasses the read-permission
// filter in search.
func (c Caller) CanReadAll() bool {
	for _, override := range c.Overrides {
		if override == auth.OverrideCanRead {
			return true
		}
	}
	return false
}

type annotationStore interface {
	Get(context.Context, string) (store.Annotation, error)
	Insert(context.Context, store.Annotation) error
	Replace(context.Context, store.Annotation) error
	MarkDeleted(context.Context, string) error
	Query(context.Context, query.Predicate, int, int) ([]store.Annotation, int, error)
	LoadAll(context.Context) ([]store.Annotation, error)
	Ping(ctx context.Context) error
}

type textIndex interface {
	MatchingIDs(string) ([]string, bool)
	IndexAnnotation(search.Record)
	DeleteAnnotation(string)
	ReindexAll([]search.Record)
}

type annotationCache interface {
	Get(context.Context, string) ([]byte, bool, error)
	Set(context.Context, string, []byte) error
	Invalidate(context.Context, string) error
}

type stashLoader interface {
	Load(context.Context, string) ([]json.RawMessage, error)
}

type Service struct {
	cfg   config.Config
	store annotationStore
	index textIndex
	cache annotationCache // nil when Redis is not configured
	stash stashLoader     // nil when object storage is not configured
}

func New(cfg config.Config, dataStore *store.PostgresStore, index *search.Service) *Service {
	return &Service{cfg: cfg, store: dataStore, index: index}
}

// WithCache attaches the Redis read cache.
func (s *Service) WithCache(c *cache.AnnotationCache) *Service {
	s.cache = c
	return s
}

// WithStash attaches the object-storage import source.
func (s *Service) WithStash(loader *stash.Loader) *Service {
	s.stash = loader
	return s
}

// Bootstrap rebuilds the text index from the store.
func (s *Service) Bootstrap(ctx context.Context) error {
	rows, err := s.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	records := make([]search.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, indexRecord(row))
	}
	s.index.ReindexAll(records)
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// CreateAnnotation validates input, injects the id and defaults, checks
// the creator invariant and persists. Nothing is written before every
// check passes.
func (s *Service) CreateAnnotation(ctx context.Context, caller Caller, annoID string, raw []byte) (*catcha.Annotation, error) {
	if _, err := s.store.Get(ctx, annoID); err == nil {
		// A soft-deleted row still owns its id.
		return nil, duplicateIDError(annoID)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	anno, err := parseInput(raw)
	if err != nil {
		return nil, err
	}

	anno.ID = annoID
	if anno.Permissions == nil {
		defaults := perms.Default(caller.UserID)
		anno.Permissions = &defaults
	}
	catcha.ApplyDefaults(anno)
	if err := catcha.Validate(anno); err != nil {
		return nil, validationError(err.Error())
	}

	if anno.Creator.ID != caller.UserID {
		return nil, creatorMismatchError(annoID, anno.Creator.ID, caller.UserID)
	}

	now := time.Now().UTC()
	if anno.Created.IsZero() {
		anno.Created = now
	}
	anno.Modified = now

	row, err := toRow(anno)
	if err != nil {
		return nil, err
	}
	if err := s.store.Insert(ctx, row); err != nil {
		if errors.Is(err, store.ErrDuplicateID) {
			return nil, duplicateIDError(annoID)
		}
		return nil, err
	}

	s.index.IndexAnnotation(indexRecord(row))
	return anno, nil
}

// ReadAnnotation returns the canonical record when the caller may read
// it. Absent, soft-deleted and forbidden records are indistinguishable.
func (s *Service) ReadAnnotation(ctx context.Context, caller Caller, annoID string) (*catcha.Annotation, error) {
	anno, err := s.getLive(ctx, annoID)
	if err != nil {
		return nil, err
	}
	if !perms.Authorize(anno.EffectivePermissions(), caller.UserID, perms.ActionRead) {
		return nil, notFoundError(annoID)
	}
	return anno, nil
}

// UpdateAnnotation replaces the content of a live annotation. Id,
// creator and created are immutable; permissions carry over unless the
// input supplies its own. Last writer wins.
func (s *Service) UpdateAnnotation(ctx context.Context, caller Caller, annoID string, raw []byte) (*catcha.Annotation, error) {
	current, err := s.getLive(ctx, annoID)
	if err != nil {
		return nil, err
	}
	if !perms.Authorize(current.EffectivePermissions(), caller.UserID, perms.ActionUpdate) {
		return nil, notFoundError(annoID)
	}

	anno, err := parseInput(raw)
	if err != nil {
		return nil, err
	}

	anno.ID = current.ID
	anno.Creator = current.Creator
	anno.Created = current.Created
	if anno.Permissions == nil {
		anno.Permissions = current.Permissions
	}
	catcha.ApplyDefaults(anno)
	if err := catcha.Validate(anno); err != nil {
		return nil, validationError(err.Error())
	}
	anno.Modified = time.Now().UTC()

	row, err := toRow(anno)
	if err != nil {
		return nil, err
	}
	if err := s.store.Replace(ctx, row); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundError(annoID)
		}
		return nil, err
	}

	s.invalidate(ctx, annoID)
	s.index.IndexAnnotation(indexRecord(row))
	return anno, nil
}

// DeleteAnnotation soft-deletes a live annotation and returns its final
// canonical record. The id stays taken forever.
func (s *Service) DeleteAnnotation(ctx context.Context, caller Caller, annoID string) (*catcha.Annotation, error) {
	anno, err := s.getLive(ctx, annoID)
	if err != nil {
		return nil, err
	}
	if !perms.Authorize(anno.EffectivePermissions(), caller.UserID, perms.ActionDelete) {
		return nil, notFoundError(annoID)
	}

	if err := s.store.MarkDeleted(ctx, annoID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundError(annoID)
		}
		return nil, err
	}

	s.invalidate(ctx, annoID)
	s.index.DeleteAnnotation(annoID)
	return anno, nil
}

// ImportResult reports the outcome for one record of a stash batch.
type ImportResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ImportAnnotations persists a batch of canonical records. Records fail
// independently; the result list matches the input order. Unlike
// create, import accepts records authored by other users.
func (s *Service) ImportAnnotations(ctx context.Context, caller Caller, records []json.RawMessage) []ImportResult {
	results := make([]ImportResult, 0, len(records))
	for _, raw := range records {
		results = append(results, s.importOne(ctx, raw))
	}
	return results
}

func (s *Service) importOne(ctx context.Context, raw json.RawMessage) ImportResult {
	anno, err := parseInput(raw)
	if err != nil {
		return ImportResult{Status: "error", Error: err.Error()}
	}
	if anno.Permissions == nil {
		defaults := perms.Default(anno.Creator.ID)
		anno.Permissions = &defaults
	}
	catcha.ApplyDefaults(anno)
	if err := catcha.Validate(anno); err != nil {
		return ImportResult{ID: anno.ID, Status: "error", Error: err.Error()}
	}

	now := time.Now().UTC()
	if anno.Created.IsZero() {
		anno.Created = now
	}
	if anno.Modified.IsZero() {
		anno.Modified = now
	}

	row, err := toRow(anno)
	if err != nil {
		return ImportResult{ID: anno.ID, Status: "error", Error: err.Error()}
	}
	if err := s.store.Insert(ctx, row); err != nil {
		if errors.Is(err, store.ErrDuplicateID) {
			return ImportResult{ID: anno.ID, Status: "error", Error: duplicateIDError(anno.ID).Error()}
		}
		return ImportResult{ID: anno.ID, Status: "error", Error: err.Error()}
	}

	s.index.IndexAnnotation(indexRecord(row))
	return ImportResult{ID: anno.ID, Status: "ok"}
}

// ImportFromStash loads a batch from object storage and imports it.
func (s *Service) ImportFromStash(ctx context.Context, caller Caller, objectName string) ([]ImportResult, error) {
	if s.stash == nil {
		return nil, domainError(422, "STASH_NOT_CONFIGURED", "stash object storage is not configured", nil)
	}
	records, err := s.stash.Load(ctx, objectName)
	if err != nil {
		return nil, validationError("load stash batch: " + err.Error())
	}
	return s.ImportAnnotations(ctx, caller, records), nil
}

// SearchResult is the paginated, counted response envelope.
type SearchResult struct {
	Total  int   `json:"total"`
	Size   int   `json:"size"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Rows   []any `json:"rows"`
}

// SearchAnnotations runs the composed predicate over the store:
// soft-deleted records excluded, read-permission filter unless the
// caller holds the CAN_READ override, all supplied filters ANDed, sorted
// ascending by created with id as tie-break, counted before pagination.
func (s *Service) SearchAnnotations(ctx context.Context, caller Caller, params query.Params, format string) (*SearchResult, error) {
	format, err := resolveFormat(format)
	if err != nil {
		return nil, err
	}

	var pred query.And
	if !caller.CanReadAll() {
		pred = append(pred, query.ReadableBy{UserID: caller.UserID})
	}
	pred = append(pred, query.Build(params)...)

	if params.Text != "" {
		if ids, ok := s.index.MatchingIDs(params.Text); ok {
			if len(ids) == 0 {
				return &SearchResult{Limit: params.Limit, Offset: params.Offset, Rows: []any{}}, nil
			}
			pred = append(pred, query.AnyOf{Field: query.FieldID, Values: ids})
		} else {
			pred = append(pred, query.TextMatch{Text: params.Text})
		}
	}

	rows, total, err := s.store.Query(ctx, pred, params.Offset, params.Limit)
	if err != nil {
		return nil, err
	}

	rendered := make([]any, 0, len(rows))
	for _, row := range rows {
		anno, err := parseRow(row)
		if err != nil {
			return nil, err
		}
		item, err := RenderAnnotation(anno, format)
		if err != nil {
			return nil, err
		}
		rendered = append(rendered, item)
	}

	return &SearchResult{
		Total:  total,
		Size:   len(rendered),
		Limit:  params.Limit,
		Offset: params.Offset,
		Rows:   rendered,
	}, nil
}

// RenderAnnotation projects a canonical record into the selected output
// format. The canonical format is the record itself.
func RenderAnnotation(anno *catcha.Annotation, format string) (any, error) {
	switch format {
	case FormatCatchAnno:
		return anno, nil
	case FormatAnnotatorJS:
		annojs, err := catcha.ToAnnotatorJS(anno)
		if err != nil {
			return nil, conversionError(err.Error())
		}
		return annojs, nil
	default:
		return nil, unknownFormatError(format)
	}
}

func resolveFormat(format string) (string, error) {
	switch format {
	case "":
		return FormatCatchAnno, nil
	case FormatCatchAnno, FormatAnnotatorJS:
		return format, nil
	default:
		return "", unknownFormatError(format)
	}
}

// getLive fetches a non-deleted annotation, consulting the read cache
// first. Cache errors degrade to store reads.
func (s *Service) getLive(ctx context.Context, annoID string) (*catcha.Annotation, error) {
	if s.cache != nil {
		raw, hit, err := s.cache.Get(ctx, annoID)
		if err != nil {
			log.Printf("cache: get %s: %v", annoID, err)
		} else if hit {
			var anno catcha.Annotation
			if err := json.Unmarshal(raw, &anno); err == nil {
				return &anno, nil
			}
			log.Printf("cache: corrupt entry for %s, dropping", annoID)
			s.invalidate(ctx, annoID)
		}
	}

	row, err := s.store.Get(ctx, annoID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundError(annoID)
		}
		return nil, err
	}
	if row.Deleted {
		return nil, notFoundError(annoID)
	}

	anno, err := parseRow(row)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, annoID, row.Raw); err != nil {
			log.Printf("cache: set %s: %v", annoID, err)
		}
	}
	return anno, nil
}

func (s *Service) invalidate(ctx context.Context, annoID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, annoID); err != nil {
		log.Printf("cache: invalidate %s: %v", annoID, err)
	}
}

func parseInput(raw []byte) (*catcha.Annotation, error) {
	if len(raw) == 0 {
		return nil, validationError("missing json in body request for create/update")
	}
	var anno catcha.Annotation
	if err := json.Unmarshal(raw, &anno); err != nil {
		return nil, validationError("malformed json: " + err.Error())
	}
	return &anno, nil
}

func parseRow(row store.Annotation) (*catcha.Annotation, error) {
	var anno catcha.Annotation
	if err := json.Unmarshal(row.Raw, &anno); err != nil {
		return nil, conversionError("anno(" + row.ID + "): stored record is not canonical: " + err.Error())
	}
	return &anno, nil
}

func toRow(anno *catcha.Annotation) (store.Annotation, error) {
	raw, err := json.Marshal(anno)
	if err != nil {
		return store.Annotation{}, validationError("encode annotation: " + err.Error())
	}
	p := anno.EffectivePermissions()
	return store.Annotation{
		ID:             anno.ID,
		SchemaVersion:  anno.SchemaVersion,
		CreatorID:      anno.Creator.ID,
		CreatorName:    anno.Creator.Name,
		BodyText:       anno.TextValue(),
		Tags:           anno.Tags(),
		TargetSources:  anno.TargetSources(),
		TargetMedias:   anno.TargetMedias(),
		CanRead:        nonNil(p.CanRead),
		CanUpdate:      nonNil(p.CanUpdate),
		CanDelete:      nonNil(p.CanDelete),
		CanAdmin:       nonNil(p.CanAdmin),
		PlatformName:   anno.Platform.Name,
		ContextID:      anno.Platform.ContextID,
		CollectionID:   anno.Platform.CollectionID,
		TargetSourceID: anno.Platform.TargetSourceID,
		Raw:            raw,
		Created:        anno.Created,
		Modified:       anno.Modified,
	}, nil
}

func indexRecord(row store.Annotation) search.Record {
	return search.Record{
		ID:       row.ID,
		BodyText: row.BodyText,
		Tags:     row.Tags,
	}
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
