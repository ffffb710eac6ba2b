package embedding

import (
	"fmt"
	"math"

	"github.com/pgvector/pgvector-go"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/nicia-ai/typegraph/dialect"
)

// encodeVector renders vec as the bind argument appropriate for strategy:
// a pgvector.Vector for a dialect with a native vector column, or a
// msgpack-encoded blob otherwise. pgvector.Vector implements
// database/sql's driver.Valuer, so it flows through the same
// dialect.ExecQuerier path as any other argument without a dialect
// branch at the call site.
func encodeVector(strategy dialect.Strategy, vec []float32) (any, error) {
	if strategy.Capabilities().VectorNativeDim > 0 {
		return pgvector.NewVector(vec), nil
	}
	b, err := msgpack.Marshal(vec)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// decodeVector reverses encodeVector given the raw column value the
// driver returned.
func decodeVector(strategy dialect.Strategy, raw any) ([]float32, error) {
	if strategy.Capabilities().VectorNativeDim > 0 {
		return decodeNativeVector(raw)
	}
	var data []byte
	switch v := raw.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return nil, fmt.Errorf("embedding: unexpected vector column type %T", raw)
	}
	var out []float32
	if err := msgpack.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// decodeNativeVector uses pgvector.Vector's own database/sql Scanner
// implementation, which understands both the binary and text wire forms
// pgx hands back for a vector column.
func decodeNativeVector(raw any) ([]float32, error) {
	var v pgvector.Vector
	if err := v.Scan(raw); err != nil {
		return nil, fmt.Errorf("embedding: decode vector column: %w", err)
	}
	return v.Slice(), nil
}

// cosineDistance is 1 - cosine similarity, matching pgvector's <=>
// operator so the SQLite brute-force path and the PostgreSQL native path
// rank results identically.
func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
