package typegraph_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicia-ai/typegraph"
)

func TestNotFoundError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := typegraph.NewNotFoundError("User")
		assert.Equal(t, "typegraph: User not found", err.Error())
	})

	t.Run("Is", func(t *testing.T) {
		err := typegraph.NewNotFoundError("Post")
		assert.True(t, errors.Is(err, typegraph.ErrNotFound))
	})

	t.Run("IsNotFound", func(t *testing.T) {
		err := typegraph.NewNotFoundError("Comment")
		assert.True(t, typegraph.IsNotFound(err))

		// Wrapped error
		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, typegraph.IsNotFound(wrapped))

		// Sentinel error
		assert.True(t, typegraph.IsNotFound(typegraph.ErrNotFound))

		// Non-matching error
		assert.False(t, typegraph.IsNotFound(errors.New("other error")))
		assert.False(t, typegraph.IsNotFound(nil))
	})
}

func TestConstraintError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := typegraph.NewConstraintError("UNIQUE constraint failed", nil)
		assert.Equal(t, "typegraph: constraint failed: UNIQUE constraint failed", err.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		underlying := errors.New("db error")
		err := typegraph.NewConstraintError("constraint violated", underlying)
		assert.True(t, errors.Is(err, underlying))
	})

	t.Run("IsConstraintError", func(t *testing.T) {
		err := typegraph.NewConstraintError("check failed", nil)
		assert.True(t, typegraph.IsConstraintError(err))

		// Wrapped error
		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, typegraph.IsConstraintError(wrapped))

		// Non-matching error
		assert.False(t, typegraph.IsConstraintError(errors.New("other error")))
		assert.False(t, typegraph.IsConstraintError(nil))
	})
}

func TestUniquenessError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := typegraph.NewUniquenessError("User", "email_unique", "alice@example.com", "n-1")
		assert.Contains(t, err.Error(), "email_unique")
		assert.Contains(t, err.Error(), "alice@example.com")
		assert.Contains(t, err.Error(), "n-1")
	})

	t.Run("IsUniquenessError", func(t *testing.T) {
		err := typegraph.NewUniquenessError("User", "email_unique", "alice@example.com", "n-1")
		assert.True(t, typegraph.IsUniquenessError(err))
		assert.False(t, typegraph.IsUniquenessError(errors.New("other")))
		assert.False(t, typegraph.IsUniquenessError(nil))
	})
}

func TestDisjointError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := typegraph.NewDisjointError("Cat", "Dog", "n-1")
		assert.Contains(t, err.Error(), "Dog")
		assert.Contains(t, err.Error(), "Cat")
		assert.Contains(t, err.Error(), "n-1")
	})

	t.Run("IsDisjointError", func(t *testing.T) {
		err := typegraph.NewDisjointError("Cat", "Dog", "n-1")
		assert.True(t, typegraph.IsDisjointError(err))
		assert.False(t, typegraph.IsDisjointError(nil))
	})
}

func TestCardinalityError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := typegraph.NewCardinalityError("hasPassport", "one", "p1 already has an active passport")
		assert.Contains(t, err.Error(), "hasPassport")
		assert.Contains(t, err.Error(), "one")
	})

	t.Run("IsCardinalityError", func(t *testing.T) {
		err := typegraph.NewCardinalityError("hasPassport", "one", "detail")
		assert.True(t, typegraph.IsCardinalityError(err))
		assert.False(t, typegraph.IsCardinalityError(nil))
	})
}

func TestRestrictedDeleteError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := typegraph.NewRestrictedDeleteError("Person", "n-1", "employedBy")
		assert.Contains(t, err.Error(), "Person")
		assert.Contains(t, err.Error(), "employedBy")
	})

	t.Run("IsRestrictedDeleteError", func(t *testing.T) {
		err := typegraph.NewRestrictedDeleteError("Person", "n-1", "employedBy")
		assert.True(t, typegraph.IsRestrictedDeleteError(err))
		assert.False(t, typegraph.IsRestrictedDeleteError(nil))
	})
}

func TestKindNotFoundError(t *testing.T) {
	err := typegraph.NewKindNotFoundError("Widget")
	assert.Contains(t, err.Error(), "Widget")
	assert.True(t, typegraph.IsKindNotFound(err))
	assert.False(t, typegraph.IsKindNotFound(nil))
}

func TestNodeNotFoundError(t *testing.T) {
	err := typegraph.NewNodeNotFoundError("Person", "n-1")
	assert.Contains(t, err.Error(), "Person")
	assert.Contains(t, err.Error(), "n-1")
	assert.True(t, typegraph.IsNodeNotFound(err))
	assert.False(t, typegraph.IsNodeNotFound(nil))
}

func TestEdgeNotFoundError(t *testing.T) {
	err := typegraph.NewEdgeNotFoundError("hasPassport", "n-1", "n-2")
	assert.Contains(t, err.Error(), "hasPassport")
	assert.True(t, typegraph.IsEdgeNotFound(err))
	assert.False(t, typegraph.IsEdgeNotFound(nil))
}

func TestEndpointError(t *testing.T) {
	err := typegraph.NewEndpointError("hasPassport", "to", "expected kind Passport")
	assert.Contains(t, err.Error(), "hasPassport")
	assert.Contains(t, err.Error(), "to")
	assert.True(t, typegraph.IsEndpointError(err))
	assert.False(t, typegraph.IsEndpointError(nil))
}

func TestConstraintNotFoundError(t *testing.T) {
	err := typegraph.NewConstraintNotFoundError("User", "email_unique")
	assert.Contains(t, err.Error(), "email_unique")
	assert.True(t, typegraph.IsConstraintNotFound(err))
	assert.False(t, typegraph.IsConstraintNotFound(nil))
}

func TestConfigurationError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := typegraph.NewConfigurationError("table name invalid", nil)
		assert.Contains(t, err.Error(), "table name invalid")
	})

	t.Run("Unwrap", func(t *testing.T) {
		underlying := errors.New("bad name")
		err := typegraph.NewConfigurationError("table name invalid", underlying)
		assert.True(t, errors.Is(err, underlying))
	})

	t.Run("IsConfigurationError", func(t *testing.T) {
		err := typegraph.NewConfigurationError("x", nil)
		assert.True(t, typegraph.IsConfigurationError(err))
		assert.False(t, typegraph.IsConfigurationError(nil))
	})
}

func TestDatabaseOperationError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		underlying := errors.New("connection reset")
		err := typegraph.NewDatabaseOperationError("insertNode", underlying)
		assert.Contains(t, err.Error(), "insertNode")
		assert.True(t, errors.Is(err, underlying))
	})

	t.Run("IsDatabaseOperationError", func(t *testing.T) {
		err := typegraph.NewDatabaseOperationError("op", errors.New("x"))
		assert.True(t, typegraph.IsDatabaseOperationError(err))
		assert.False(t, typegraph.IsDatabaseOperationError(nil))
	})
}

func TestCompilerInvariantError(t *testing.T) {
	err := typegraph.NewCompilerInvariantError("unknown alias t2")
	assert.Contains(t, err.Error(), "unknown alias t2")
	assert.True(t, typegraph.IsCompilerInvariantError(err))
	assert.False(t, typegraph.IsCompilerInvariantError(nil))
}

func TestValidationError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := typegraph.NewValidationError("email", errors.New("invalid format"))
		assert.Equal(t, `typegraph: validation failed for "email": invalid format`, err.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		underlying := errors.New("too short")
		err := typegraph.NewValidationError("name", underlying)
		assert.True(t, errors.Is(err, underlying))
	})

	t.Run("IsValidationError", func(t *testing.T) {
		err := typegraph.NewValidationError("age", errors.New("must be positive"))
		assert.True(t, typegraph.IsValidationError(err))

		// Wrapped error
		wrapped := fmt.Errorf("wrapper: %w", err)
		assert.True(t, typegraph.IsValidationError(wrapped))

		// Non-matching error
		assert.False(t, typegraph.IsValidationError(errors.New("other error")))
		assert.False(t, typegraph.IsValidationError(nil))
	})
}

func TestRollbackError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := &typegraph.RollbackError{Err: errors.New("connection lost")}
		assert.Equal(t, "typegraph: rollback failed: connection lost", err.Error())
	})

	t.Run("Unwrap", func(t *testing.T) {
		underlying := errors.New("timeout")
		err := &typegraph.RollbackError{Err: underlying}
		assert.True(t, errors.Is(err, underlying))
	})
}

func TestAggregateError(t *testing.T) {
	t.Run("NoErrors", func(t *testing.T) {
		err := typegraph.NewAggregateError()
		assert.Nil(t, err)
	})

	t.Run("NilErrors", func(t *testing.T) {
		err := typegraph.NewAggregateError(nil, nil, nil)
		assert.Nil(t, err)
	})

	t.Run("SingleError", func(t *testing.T) {
		single := errors.New("single error")
		err := typegraph.NewAggregateError(single)
		assert.Equal(t, single, err)
	})

	t.Run("MultipleErrors", func(t *testing.T) {
		err1 := errors.New("error 1")
		err2 := errors.New("error 2")
		err := typegraph.NewAggregateError(err1, err2)

		require.NotNil(t, err)
		assert.Contains(t, err.Error(), "multiple errors")
		assert.Contains(t, err.Error(), "error 1")
		assert.Contains(t, err.Error(), "error 2")
	})

	t.Run("MixedNilAndErrors", func(t *testing.T) {
		err1 := errors.New("error 1")
		err := typegraph.NewAggregateError(nil, err1, nil)

		require.NotNil(t, err)
		assert.Equal(t, err1, err) // Single non-nil error returned directly
	})
}

func TestSentinelErrors(t *testing.T) {
	t.Run("ErrNotFound", func(t *testing.T) {
		assert.Error(t, typegraph.ErrNotFound)
		assert.Contains(t, typegraph.ErrNotFound.Error(), "not found")
	})

	t.Run("ErrTxStarted", func(t *testing.T) {
		assert.Error(t, typegraph.ErrTxStarted)
		assert.Contains(t, typegraph.ErrTxStarted.Error(), "transaction")
	})
}

// BenchmarkErrors benchmarks error creation and checking.
func BenchmarkErrors(b *testing.B) {
	b.Run("NewNotFoundError", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = typegraph.NewNotFoundError("User")
		}
	})

	b.Run("IsNotFound", func(b *testing.B) {
		err := typegraph.NewNotFoundError("User")
		for i := 0; i < b.N; i++ {
			_ = typegraph.IsNotFound(err)
		}
	})

	b.Run("NewConstraintError", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_ = typegraph.NewConstraintError("unique", nil)
		}
	})

	b.Run("IsConstraintError", func(b *testing.B) {
		err := typegraph.NewConstraintError("unique", nil)
		for i := 0; i < b.N; i++ {
			_ = typegraph.IsConstraintError(err)
		}
	})

	b.Run("NewValidationError", func(b *testing.B) {
		underlying := errors.New("invalid")
		for i := 0; i < b.N; i++ {
			_ = typegraph.NewValidationError("field", underlying)
		}
	})

	b.Run("NewAggregateError_multiple", func(b *testing.B) {
		err1 := errors.New("err1")
		err2 := errors.New("err2")
		err3 := errors.New("err3")
		for i := 0; i < b.N; i++ {
			_ = typegraph.NewAggregateError(err1, err2, err3)
		}
	})
}
