package storage

import (
	"regexp"
	"time"

	"github.com/nicia-ai/typegraph"
)

// TemporalMode selects which rows a read considers live (spec §3.1, §6.1).
type TemporalMode int

const (
	// Current excludes soft-deleted rows and rows outside their validity
	// window. The default for every read path.
	Current TemporalMode = iota
	// IncludeEnded additionally returns rows whose validTo has passed.
	IncludeEnded
	// IncludeTombstones additionally returns soft-deleted rows.
	IncludeTombstones
	// AsOf returns rows live at a specific instant; the filter's At
	// field carries the timestamp.
	AsOf
)

// Filter scopes a read by temporal mode.
type Filter struct {
	Mode TemporalMode
	At   time.Time // only meaningful when Mode == AsOf
}

// CurrentFilter is the default filter used when the caller does not opt
// into tombstones or historical reads.
func CurrentFilter() Filter {
	return Filter{Mode: Current}
}

// Node is a row of the nodes table (spec §3.1).
type Node struct {
	GraphID   string
	Kind      string
	ID        string
	Props     map[string]any
	Version   int
	ValidFrom *time.Time
	ValidTo   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Live reports whether the node is neither soft-deleted nor outside its
// validity window as of now.
func (n Node) Live(now time.Time) bool {
	if n.DeletedAt != nil {
		return false
	}
	if n.ValidFrom != nil && now.Before(*n.ValidFrom) {
		return false
	}
	if n.ValidTo != nil && now.After(*n.ValidTo) {
		return false
	}
	return true
}

// Edge is a row of the edges table (spec §3.1).
type Edge struct {
	GraphID   string
	ID        string
	Kind      string
	FromKind  string
	FromID    string
	ToKind    string
	ToID      string
	Props     map[string]any
	ValidFrom *time.Time
	ValidTo   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Active reports whether validTo IS NULL, the "active edge" predicate
// used by oneActive cardinality checks (spec §4.2.5).
func (e Edge) Active() bool {
	return e.ValidTo == nil
}

// SchemaVersion is a row of the schemaVersions table (spec §3.1, §6.2).
type SchemaVersion struct {
	GraphID    string
	Version    int
	SchemaHash string
	SchemaDoc  []byte // JSON blob
	CreatedAt  time.Time
	IsActive   bool
}

// TableNames configures per-store table name overrides (spec §6.2).
type TableNames struct {
	Nodes          string
	Edges          string
	Uniques        string
	SchemaVersions string
	Embeddings     string
}

// DefaultTableNames returns the names used when a store does not override
// them.
func DefaultTableNames() TableNames {
	return TableNames{
		Nodes:          "nodes",
		Edges:          "edges",
		Uniques:        "uniques",
		SchemaVersions: "schema_versions",
		Embeddings:     "embeddings",
	}
}

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// Validate checks every configured name against the engine's identifier
// rule (spec §6.2): `^[A-Za-z_][A-Za-z0-9_$]*$`, at most 63 characters.
func (t TableNames) Validate() error {
	for _, name := range []string{t.Nodes, t.Edges, t.Uniques, t.SchemaVersions, t.Embeddings} {
		if name == "" || len(name) > 63 || !tableNameRe.MatchString(name) {
			return typegraph.NewConfigurationError("invalid table name "+name, nil)
		}
	}
	return nil
}
