package typegraph

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("typegraph: entity not found")

	// ErrTxStarted is returned when attempting to start a new transaction
	// within an existing transaction.
	ErrTxStarted = errors.New("typegraph: cannot start a transaction within a transaction")
)

// NotFoundError represents an error when an entity is not found.
type NotFoundError struct {
	label string
	id    any // Optional: the ID that was searched for
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("typegraph: %s not found (id=%v)", e.label, e.id)
	}
	return fmt.Sprintf("typegraph: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity label.
func (e *NotFoundError) Label() string {
	return e.label
}

// ID returns the ID that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError for the given entity type.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWithID returns a new NotFoundError with the ID that was searched for.
func NewNotFoundErrorWithID(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// KindNotFoundError represents a reference to a kind that was never
// registered with the graph definition.
type KindNotFoundError struct {
	Kind string
}

// Error returns the error string.
func (e *KindNotFoundError) Error() string {
	return fmt.Sprintf("typegraph: kind %q is not registered", e.Kind)
}

// NewKindNotFoundError returns a new KindNotFoundError for the given kind.
func NewKindNotFoundError(kind string) *KindNotFoundError {
	return &KindNotFoundError{Kind: kind}
}

// IsKindNotFound returns true if the error is a KindNotFoundError.
func IsKindNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *KindNotFoundError
	return errors.As(err, &e)
}

// NodeNotFoundError represents a reference to a node id that does not
// exist, or is not currently live (soft-deleted or outside its validity
// window).
type NodeNotFoundError struct {
	Kind string
	ID   string
}

// Error returns the error string.
func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("typegraph: node %s(%s) not found", e.Kind, e.ID)
}

// NewNodeNotFoundError returns a new NodeNotFoundError.
func NewNodeNotFoundError(kind, id string) *NodeNotFoundError {
	return &NodeNotFoundError{Kind: kind, ID: id}
}

// IsNodeNotFound returns true if the error is a NodeNotFoundError.
func IsNodeNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NodeNotFoundError
	return errors.As(err, &e)
}

// EdgeNotFoundError represents a reference to an edge that does not exist
// between the given endpoints.
type EdgeNotFoundError struct {
	Kind string
	From string
	To   string
}

// Error returns the error string.
func (e *EdgeNotFoundError) Error() string {
	return fmt.Sprintf("typegraph: edge %s(%s -> %s) not found", e.Kind, e.From, e.To)
}

// NewEdgeNotFoundError returns a new EdgeNotFoundError.
func NewEdgeNotFoundError(kind, from, to string) *EdgeNotFoundError {
	return &EdgeNotFoundError{Kind: kind, From: from, To: to}
}

// IsEdgeNotFound returns true if the error is an EdgeNotFoundError.
func IsEdgeNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *EdgeNotFoundError
	return errors.As(err, &e)
}

// EndpointError represents an edge operation whose endpoint node does not
// satisfy the edge type's declared kind bounds (missing, wrong kind, or
// not live).
type EndpointError struct {
	Edge     string
	Endpoint string // "from" or "to"
	Detail   string
}

// Error returns the error string.
func (e *EndpointError) Error() string {
	return fmt.Sprintf("typegraph: edge %q %s endpoint invalid: %s", e.Edge, e.Endpoint, e.Detail)
}

// NewEndpointError returns a new EndpointError.
func NewEndpointError(edge, endpoint, detail string) *EndpointError {
	return &EndpointError{Edge: edge, Endpoint: endpoint, Detail: detail}
}

// IsEndpointError returns true if the error is an EndpointError.
func IsEndpointError(err error) bool {
	if err == nil {
		return false
	}
	var e *EndpointError
	return errors.As(err, &e)
}

// ConstraintNotFoundError represents a reference to a uniqueness constraint
// that is not declared on the kind (or its scope) being resolved.
type ConstraintNotFoundError struct {
	Kind       string
	Constraint string
}

// Error returns the error string.
func (e *ConstraintNotFoundError) Error() string {
	return fmt.Sprintf("typegraph: constraint %q not declared on kind %q", e.Constraint, e.Kind)
}

// NewConstraintNotFoundError returns a new ConstraintNotFoundError.
func NewConstraintNotFoundError(kind, constraint string) *ConstraintNotFoundError {
	return &ConstraintNotFoundError{Kind: kind, Constraint: constraint}
}

// IsConstraintNotFound returns true if the error is a ConstraintNotFoundError.
func IsConstraintNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *ConstraintNotFoundError
	return errors.As(err, &e)
}

// ConstraintError represents a database constraint violation error surfaced
// by a storage backend (unique index, foreign key, check constraint).
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("typegraph: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// UniquenessError represents a conflict on a uniqueness constraint: the
// claimed key already belongs to a different live node.
type UniquenessError struct {
	Kind       string
	Constraint string
	Key        string
	HeldBy     string // id of the node currently holding the key
}

// Error returns the error string.
func (e *UniquenessError) Error() string {
	return fmt.Sprintf("typegraph: uniqueness constraint %q on %s violated by key %q (held by %s)",
		e.Constraint, e.Kind, e.Key, e.HeldBy)
}

// NewUniquenessError returns a new UniquenessError.
func NewUniquenessError(kind, constraint, key, heldBy string) *UniquenessError {
	return &UniquenessError{Kind: kind, Constraint: constraint, Key: key, HeldBy: heldBy}
}

// IsUniquenessError returns true if the error is a UniquenessError.
func IsUniquenessError(err error) bool {
	if err == nil {
		return false
	}
	var e *UniquenessError
	return errors.As(err, &e)
}

// DisjointError represents an attempt to create or resurrect a node whose
// id is already live under a kind disjoint with the requested kind.
type DisjointError struct {
	Kind         string
	DisjointKind string
	ID           string
}

// Error returns the error string.
func (e *DisjointError) Error() string {
	return fmt.Sprintf("typegraph: id %s already live as disjoint kind %s (requested %s)",
		e.ID, e.DisjointKind, e.Kind)
}

// NewDisjointError returns a new DisjointError.
func NewDisjointError(kind, disjointKind, id string) *DisjointError {
	return &DisjointError{Kind: kind, DisjointKind: disjointKind, ID: id}
}

// IsDisjointError returns true if the error is a DisjointError.
func IsDisjointError(err error) bool {
	if err == nil {
		return false
	}
	var e *DisjointError
	return errors.As(err, &e)
}

// CardinalityError represents an edge mutation that would violate the
// declared cardinality (many, one, oneActive, unique) of an edge type.
type CardinalityError struct {
	Edge        string
	Cardinality string
	Detail      string
}

// Error returns the error string.
func (e *CardinalityError) Error() string {
	return fmt.Sprintf("typegraph: edge %q cardinality %s violated: %s", e.Edge, e.Cardinality, e.Detail)
}

// NewCardinalityError returns a new CardinalityError.
func NewCardinalityError(edge, cardinality, detail string) *CardinalityError {
	return &CardinalityError{Edge: edge, Cardinality: cardinality, Detail: detail}
}

// IsCardinalityError returns true if the error is a CardinalityError.
func IsCardinalityError(err error) bool {
	if err == nil {
		return false
	}
	var e *CardinalityError
	return errors.As(err, &e)
}

// RestrictedDeleteError represents a node delete blocked by an incident
// edge whose onDelete behavior is restrict.
type RestrictedDeleteError struct {
	Kind string
	ID   string
	Edge string
}

// Error returns the error string.
func (e *RestrictedDeleteError) Error() string {
	return fmt.Sprintf("typegraph: delete of %s(%s) blocked by restrict edge %q", e.Kind, e.ID, e.Edge)
}

// NewRestrictedDeleteError returns a new RestrictedDeleteError.
func NewRestrictedDeleteError(kind, id, edge string) *RestrictedDeleteError {
	return &RestrictedDeleteError{Kind: kind, ID: id, Edge: edge}
}

// IsRestrictedDeleteError returns true if the error is a RestrictedDeleteError.
func IsRestrictedDeleteError(err error) bool {
	if err == nil {
		return false
	}
	var e *RestrictedDeleteError
	return errors.As(err, &e)
}

// ConfigurationError represents an invalid store or graph-definition
// configuration: bad table names, an unsupported capability requested of
// the active backend, or a cyclic implication graph.
type ConfigurationError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e *ConfigurationError) Error() string {
	if e.wrap != nil {
		return fmt.Sprintf("typegraph: configuration error: %s: %v", e.msg, e.wrap)
	}
	return fmt.Sprintf("typegraph: configuration error: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error {
	return e.wrap
}

// NewConfigurationError returns a new ConfigurationError.
func NewConfigurationError(msg string, wrap error) *ConfigurationError {
	return &ConfigurationError{msg: msg, wrap: wrap}
}

// IsConfigurationError returns true if the error is a ConfigurationError.
func IsConfigurationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigurationError
	return errors.As(err, &e)
}

// DatabaseOperationError wraps an otherwise-unexpected backend failure the
// storage engine could not interpret into a more specific tagged error.
type DatabaseOperationError struct {
	Op  string
	Err error
}

// Error returns the error string.
func (e *DatabaseOperationError) Error() string {
	return fmt.Sprintf("typegraph: database operation %q failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *DatabaseOperationError) Unwrap() error {
	return e.Err
}

// NewDatabaseOperationError returns a new DatabaseOperationError.
func NewDatabaseOperationError(op string, err error) *DatabaseOperationError {
	return &DatabaseOperationError{Op: op, Err: err}
}

// IsDatabaseOperationError returns true if the error is a DatabaseOperationError.
func IsDatabaseOperationError(err error) bool {
	if err == nil {
		return false
	}
	var e *DatabaseOperationError
	return errors.As(err, &e)
}

// CompilerInvariantError signals a bug-class failure inside the query
// compiler (e.g. an unknown alias escaping planning). User input should
// never be able to trigger this; seeing one means the compiler has a bug.
type CompilerInvariantError struct {
	Invariant string
}

// Error returns the error string.
func (e *CompilerInvariantError) Error() string {
	return fmt.Sprintf("typegraph: compiler invariant violated: %s", e.Invariant)
}

// NewCompilerInvariantError returns a new CompilerInvariantError.
func NewCompilerInvariantError(invariant string) *CompilerInvariantError {
	return &CompilerInvariantError{Invariant: invariant}
}

// IsCompilerInvariantError returns true if the error is a CompilerInvariantError.
func IsCompilerInvariantError(err error) bool {
	if err == nil {
		return false
	}
	var e *CompilerInvariantError
	return errors.As(err, &e)
}

// ValidationError represents a validation error for field values, prepared
// bindings, matchOn fields, cursors, or pagination arguments.
type ValidationError struct {
	Name string // Field or entity name
	Err  error  // Underlying validation error
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("typegraph: validation failed for %q: %s", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError returns a new ValidationError for the given field.
func NewValidationError(name string, err error) *ValidationError {
	return &ValidationError{Name: name, Err: err}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("typegraph: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// AggregateError represents multiple errors collected during a batch
// operation (e.g. a bulkFindOrCreate call where more than one item fails
// validation before any backend write is attempted).
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "typegraph: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("typegraph: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}

// QueryError wraps a query error with additional context.
type QueryError struct {
	Entity string // Entity type being queried
	Op     string // Operation (e.g., "select", "count", "exist")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("typegraph: querying %s (%s): %v", e.Entity, e.Op, e.Err)
	}
	return fmt.Sprintf("typegraph: querying %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError.
func NewQueryError(entity, op string, err error) *QueryError {
	return &QueryError{Entity: entity, Op: op, Err: err}
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

