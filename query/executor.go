package query

import (
	"context"

	"github.com/nicia-ai/typegraph"
	"github.com/nicia-ai/typegraph/dialect"
	"github.com/nicia-ai/typegraph/registry"
	"github.com/nicia-ai/typegraph/storage"
)

// Executor compiles and runs Query values against a storage.Backend (spec
// §4.5 step 9, §4.7, §4.8).
type Executor struct {
	backend  storage.Backend
	reg      *registry.Registry
	strategy dialect.Strategy
	tables   storage.TableNames
	cache    *StatementCache
}

// NewExecutor builds an Executor with a statement cache of the given
// capacity (0 disables caching).
func NewExecutor(backend storage.Backend, reg *registry.Registry, strategy dialect.Strategy, tables storage.TableNames, cacheSize int) *Executor {
	var cache *StatementCache
	if cacheSize > 0 {
		cache = NewStatementCache(cacheSize)
	}
	return &Executor{backend: backend, reg: reg, strategy: strategy, tables: tables, cache: cache}
}

// WithBackend returns a shallow copy of ex bound to a different backend,
// sharing the same registry, strategy, table names, and statement cache.
// Used to derive a transaction-scoped Executor (see client.Client.Transaction)
// without recompiling or discarding cached plans: a cached SQL text/plan
// pair is valid against any backend that shares this Executor's dialect
// and table names.
func (ex *Executor) WithBackend(backend storage.Backend) *Executor {
	nex := *ex
	nex.backend = backend
	return &nex
}

// Result is the decoded output of running a Query.
type Result struct {
	Rows []Row
}

// Run compiles q and executes it to completion, with no pagination
// bookkeeping. Use Page for cursor-paginated reads.
func (ex *Executor) Run(ctx context.Context, q Query) (*Result, error) {
	sqlText, args, plan, err := ex.compile(q)
	if err != nil {
		return nil, err
	}
	return ex.runCompiled(ctx, sqlText, args, plan)
}

// compile memoizes by the query's exact value (structure and literal
// bindings alike): repeated execution of the identical Query, as a
// prepared statement polled on a timer would do, skips recompilation
// entirely. A query that differs only in a literal value is, by design,
// a cache miss rather than a reused binding descriptor — see DESIGN.md.
func (ex *Executor) compile(q Query) (string, []any, *Plan, error) {
	if ex.cache != nil {
		if hit, ok := ex.cache.lookup(q); ok {
			return hit.SQL, hit.Args, hit.Plan, nil
		}
	}
	sqlText, args, plan, err := Compile(q, ex.reg, ex.strategy, ex.tables)
	if err != nil {
		return "", nil, nil, err
	}
	if ex.cache != nil {
		ex.cache.store(q, sqlText, args, plan)
	}
	return sqlText, args, plan, nil
}

func (ex *Executor) runCompiled(ctx context.Context, sqlText string, args []any, plan *Plan) (*Result, error) {
	raw, err := ex.backend.Execute(ctx, sqlText, args)
	if err != nil {
		return nil, typegraph.NewQueryError("query", "execute", err)
	}
	rows := make([]Row, 0, len(raw))
	for _, r := range raw {
		row, err := decodeRow(r, plan)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return &Result{Rows: rows}, nil
}

// Page is a cursor-paginated page of results (spec §4.7).
type Page struct {
	Rows        []Row
	HasNextPage bool
	HasPrevPage bool
	StartCursor string
	EndCursor   string
}

// PaginateArgs selects a page direction (spec §4.7 `paginate({first,
// after?})` / `paginate({last, before?})`): set exactly one of First or
// Last.
type PaginateArgs struct {
	First  *int
	After  string
	Last   *int
	Before string
}

// Page runs q as a forward cursor page: after (if non-empty) resumes from
// a cursor previously returned by this method, pageSize bounds the number
// of rows returned. It is a thin wrapper over Paginate kept for callers
// that only need the forward direction.
func (ex *Executor) Page(ctx context.Context, q Query, after string, pageSize int) (*Page, error) {
	return ex.Paginate(ctx, q, PaginateArgs{First: &pageSize, After: after})
}

// Paginate runs q as a cursor page in either direction (spec §4.7). One
// extra row is fetched internally to detect whether a further page exists
// in the direction requested.
func (ex *Executor) Paginate(ctx context.Context, q Query, args PaginateArgs) (*Page, error) {
	if len(q.OrderBy) == 0 {
		return nil, typegraph.NewValidationError("orderBy", errNoOrderForPagination)
	}
	backward := args.Last != nil
	pageSize := 20
	cursor := args.After
	if backward {
		if *args.Last > 0 {
			pageSize = *args.Last
		}
		cursor = args.Before
	} else if args.First != nil && *args.First > 0 {
		pageSize = *args.First
	}

	pq := q
	if cursor != "" {
		cp, err := decodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		seek, err := buildSeekPredicate(q.OrderBy, cp, backward)
		if err != nil {
			return nil, err
		}
		pq.Where = andPredicate(q.Where, &seek)
	}
	limitPlusOne := pageSize + 1
	pq.Limit = &limitPlusOne
	if backward {
		pq.OrderBy = reversedOrder(q.OrderBy)
	}

	sqlText, argv, plan, err := ex.compile(pq)
	if err != nil {
		return nil, err
	}
	res, err := ex.runCompiled(ctx, sqlText, argv, plan)
	if err != nil {
		return nil, err
	}

	rows := res.Rows
	page := &Page{}
	if backward {
		page.HasPrevPage = len(rows) > pageSize
		if page.HasPrevPage {
			rows = rows[:pageSize]
		}
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
		page.HasNextPage = cursor != ""
	} else {
		page.HasPrevPage = cursor != ""
		if len(rows) > pageSize {
			page.HasNextPage = true
			rows = rows[:pageSize]
		}
	}
	page.Rows = rows
	if len(rows) > 0 {
		if c, err := encodeCursor(q.OrderBy, rows[0], plan); err == nil {
			page.StartCursor = c
		}
		if c, err := encodeCursor(q.OrderBy, rows[len(rows)-1], plan); err == nil {
			page.EndCursor = c
		}
	}
	return page, nil
}

// Stream runs q as a lazy, paginated sequence of rows, internally looping
// Paginate in pageSize batches (spec §4.7 "stream(batchSize) is paginate
// looped", §2). yield is called once per row in order; it returns false
// to stop the stream early. Stream returns the first error encountered by
// either compilation/execution or yield's context.
func (ex *Executor) Stream(ctx context.Context, q Query, batchSize int, yield func(Row) bool) error {
	if batchSize <= 0 {
		batchSize = 20
	}
	after := ""
	for {
		page, err := ex.Paginate(ctx, q, PaginateArgs{First: &batchSize, After: after})
		if err != nil {
			return err
		}
		for _, row := range page.Rows {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !yield(row) {
				return nil
			}
		}
		if !page.HasNextPage {
			return nil
		}
		after = page.EndCursor
	}
}

// PreparedQuery holds a Query template and the declared types of its named
// Param operands, for repeated execution with different literal bindings
// (spec §4.8). It holds no compiled SQL: each Execute substitutes the
// bindings into the template and compiles the result through Run (and
// the statement cache, when one is configured).
type PreparedQuery struct {
	sqlTemplate Query
	paramTypes  map[string]ParamType
}

// Prepare collects q's named parameters and their declared types and
// returns a PreparedQuery that can be executed repeatedly by substituting
// literal values for them. It does not compile q and never returns an error.
func (ex *Executor) Prepare(q Query) (*PreparedQuery, error) {
	types := map[string]ParamType{}
	collectQueryParams(q, types)
	return &PreparedQuery{sqlTemplate: q, paramTypes: types}, nil
}

// Execute runs a prepared query with bindings supplying a literal for
// every named parameter the query references (spec §4.8). It rejects a
// binding set that is missing a declared parameter, supplies one the
// query doesn't declare, binds null (callers wanting that must use
// isNull/isNotNull in the predicate instead), or whose value's Go type
// doesn't match the parameter's declared ParamType.
func (ex *Executor) Execute(ctx context.Context, pq *PreparedQuery, bindings map[string]any) (*Result, error) {
	for name := range bindings {
		if _, ok := pq.paramTypes[name]; !ok {
			return nil, typegraph.NewValidationError("bindings", extraParamError(name))
		}
	}
	for name, t := range pq.paramTypes {
		v, ok := bindings[name]
		if !ok {
			return nil, typegraph.NewValidationError("bindings", missingParamError(name))
		}
		if v == nil {
			return nil, typegraph.NewValidationError("bindings", nullParamError(name))
		}
		if err := checkParamType(name, t, v); err != nil {
			return nil, typegraph.NewValidationError("bindings", err)
		}
	}
	resolved := substituteParams(pq.sqlTemplate, bindings)
	return ex.Run(ctx, resolved)
}

