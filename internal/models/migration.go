package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest is returned for migration requests that cannot be run at all.
var ErrInvalidRequest = errors.New("invalid migration request")

// EntityKind is one of the migratable data categories.
type EntityKind string

const (
	KindProducts             EntityKind = "products"
	KindCollections          EntityKind = "collections"
	KindPages                EntityKind = "pages"
	KindBlogs                EntityKind = "blogs"
	KindMetaobjects          EntityKind = "metaobjects"
	KindMetafieldDefinitions EntityKind = "metafield_definitions"
)

// AllKinds lists entity kinds in the order the workbench migrates them.
var AllKinds = []EntityKind{
	KindProducts, KindCollections, KindMetaobjects, KindBlogs, KindPages, KindMetafieldDefinitions,
}

// Composite reports whether outcomes of this kind include child entries
// (articles under blogs, entries under metaobject definitions), so the
// outcome count does not map one-to-one to requested ids.
func (k EntityKind) Composite() bool {
	return k == KindBlogs || k == KindMetaobjects
}

// Label returns the display label used in logs and conflict prompts.
func (k EntityKind) Label() string {
	switch k {
	case KindProducts:
		return "Produkte"
	case KindCollections:
		return "Collections"
	case KindPages:
		return "Pages"
	case KindBlogs:
		return "Blogs"
	case KindMetaobjects:
		return "Metaobjekte"
	case KindMetafieldDefinitions:
		return "Metafelder"
	}
	return string(k)
}

// ParseKind validates an entity kind name.
func ParseKind(s string) (EntityKind, error) {
	for _, k := range AllKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: unknown entity kind %q", ErrInvalidRequest, s)
}

// ConflictPolicy governs how pre-existing target matches are handled.
type ConflictPolicy string

const (
	PolicySkip      ConflictPolicy = "skip"
	PolicyOverwrite ConflictPolicy = "overwrite"
	PolicyAsk       ConflictPolicy = "ask"
)

// ParsePolicy validates a conflict policy name. Empty means skip.
func ParsePolicy(s string) (ConflictPolicy, error) {
	switch ConflictPolicy(s) {
	case "":
		return PolicySkip, nil
	case PolicySkip, PolicyOverwrite, PolicyAsk:
		return ConflictPolicy(s), nil
	}
	return "", fmt.Errorf("%w: unknown conflict policy %q", ErrInvalidRequest, s)
}

// Status is the result state of a single migrated item.
type Status string

const (
	StatusCreated  Status = "created"
	StatusUpdated  Status = "updated"
	StatusSkipped  Status = "skipped"
	StatusError    Status = "error"
	StatusConflict Status = "conflict"
)

// Outcome describes what happened to one source item (or child entry).
// SourceData and TargetData are only set for conflicts.
type Outcome struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Status     Status         `json:"status"`
	Message    string         `json:"message,omitempty"`
	SourceData map[string]any `json:"sourceData,omitempty"`
	TargetData map[string]any `json:"targetData,omitempty"`
}

// Summary is a count of outcomes by status.
type Summary struct {
	Total     int `json:"total"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
	Conflicts int `json:"conflicts"`
}

// Add folds another summary into s.
func (s *Summary) Add(o Summary) {
	s.Total += o.Total
	s.Created += o.Created
	s.Updated += o.Updated
	s.Skipped += o.Skipped
	s.Errors += o.Errors
	s.Conflicts += o.Conflicts
}

// Decision is the caller's choice for a single conflict.
type Decision string

const (
	DecisionOverwrite Decision = "overwrite"
	DecisionSkip      Decision = "skip"
)

// ConflictDecision maps conflict source IDs to decisions.
type ConflictDecision map[string]Decision

// Validate rejects decision values other than overwrite and skip.
func (d ConflictDecision) Validate() error {
	for id, v := range d {
		if v != DecisionOverwrite && v != DecisionSkip {
			return fmt.Errorf("%w: decision %q for %s", ErrInvalidRequest, v, id)
		}
	}
	return nil
}

// Shop identifies a store and the credentials used to talk to it.
type Shop struct {
	URL   string `json:"url" yaml:"url"`
	Token string `json:"token" yaml:"token"`
}

// MigrationRequest is one entity-kind pass from source to target.
type MigrationRequest struct {
	Source    Shop           `json:"sourceShop"`
	Target    Shop           `json:"targetShop"`
	Kind      EntityKind     `json:"dataType"`
	ItemIDs   []string       `json:"itemIds"`
	Policy    ConflictPolicy `json:"conflictMode"`
	DryRun    bool           `json:"dryRun"`
	OwnerType string         `json:"metafieldsOwnerType,omitempty"`
}

// DefaultOwnerType scopes metafield definitions when no owner type is given.
const DefaultOwnerType = "PRODUCT"

// Validate checks the request is structurally runnable.
func (r *MigrationRequest) Validate() error {
	if strings.TrimSpace(r.Source.URL) == "" || strings.TrimSpace(r.Target.URL) == "" {
		return fmt.Errorf("%w: source and target shop URLs are required", ErrInvalidRequest)
	}
	if _, err := ParseKind(string(r.Kind)); err != nil {
		return err
	}
	if _, err := ParsePolicy(string(r.Policy)); err != nil {
		return err
	}
	return nil
}

// MigrationResult is the response of a single migration pass.
type MigrationResult struct {
	Results []Outcome `json:"results"`
	Summary Summary   `json:"summary"`
}
