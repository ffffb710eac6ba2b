package pgdialect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nicia-ai/typegraph/dialect"
	"github.com/nicia-ai/typegraph/dialect/pgdialect"
)

func TestStrategy(t *testing.T) {
	s := pgdialect.New()

	assert.Equal(t, dialect.Postgres, s.Name())
	assert.Equal(t, "TRUE", s.BoolLiteral(true))
	assert.Equal(t, "FALSE", s.BoolLiteral(false))
	assert.Equal(t, "$1", s.Placeholder(1))
	assert.Equal(t, "$7", s.Placeholder(7))
	assert.Equal(t, dialect.JSONBinary, s.JSONMode())
	assert.Equal(t, 65535, s.MaxBindParams())

	caps := s.Capabilities()
	assert.True(t, caps.Transactions)
	assert.True(t, caps.JSONB)
	assert.True(t, caps.GinIndexes)
	assert.Equal(t, 2000, caps.VectorNativeDim)
}

func TestJSONExtract(t *testing.T) {
	s := pgdialect.New()

	assert.Equal(t, `p.props->>'name'`, s.JSONExtract("p.props", "name"))
	assert.Equal(t, `p.props->'address'->>'city'`, s.JSONExtract("p.props", "address.city"))
}
