package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nicia-ai/typegraph"
	"github.com/nicia-ai/typegraph/graphdef"
	"github.com/nicia-ai/typegraph/storage"
)

func userEmailDef() *graphdef.GraphDef {
	def := graphdef.New()
	def.RegisterNode(graphdef.NodeRegistration{
		Type: graphdef.NodeType{Kind: "User"},
		Unique: []graphdef.UniqueConstraint{
			{Name: "email_unique", Fields: []string{"email"}, Scope: graphdef.ScopeKind},
		},
	})
	return def
}

func TestEngineFindOrCreateNodeCreatesOnFirstCall(t *testing.T) {
	eng, _, _ := newEngineTestSetup(t, userEmailDef())
	ctx := context.Background()

	res, err := eng.FindOrCreateNode(ctx, storage.FindOrCreateNodeInput{
		Kind: "User", MatchOn: "email_unique", Props: map[string]any{"email": "ada@example.com"},
	})
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Equal(t, "ada@example.com", res.Node.Props["email"])
}

func TestEngineFindOrCreateNodeKeepsExistingPropsByDefault(t *testing.T) {
	eng, _, _ := newEngineTestSetup(t, userEmailDef())
	ctx := context.Background()

	first, err := eng.FindOrCreateNode(ctx, storage.FindOrCreateNodeInput{
		Kind: "User", MatchOn: "email_unique", Props: map[string]any{"email": "ada@example.com", "name": "Ada"},
	})
	require.NoError(t, err)

	second, err := eng.FindOrCreateNode(ctx, storage.FindOrCreateNodeInput{
		Kind: "User", MatchOn: "email_unique", Props: map[string]any{"email": "ada@example.com", "name": "Someone Else"},
	})
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Equal(t, first.Node.ID, second.Node.ID)
	require.Equal(t, "Ada", second.Node.Props["name"])
}

func TestEngineFindOrCreateNodeUpdatesOnConflictUpdate(t *testing.T) {
	eng, _, _ := newEngineTestSetup(t, userEmailDef())
	ctx := context.Background()

	first, err := eng.FindOrCreateNode(ctx, storage.FindOrCreateNodeInput{
		Kind: "User", MatchOn: "email_unique", Props: map[string]any{"email": "ada@example.com", "name": "Ada"},
	})
	require.NoError(t, err)

	second, err := eng.FindOrCreateNode(ctx, storage.FindOrCreateNodeInput{
		Kind: "User", MatchOn: "email_unique", OnConflict: storage.OnConflictUpdate,
		Props: map[string]any{"email": "ada@example.com", "name": "Ada Lovelace"},
	})
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Equal(t, first.Node.ID, second.Node.ID)
	require.Equal(t, "Ada Lovelace", second.Node.Props["name"])
	require.Equal(t, first.Node.Version+1, second.Node.Version)
}

func TestEngineFindOrCreateNodeResurrectsTombstonedMatch(t *testing.T) {
	eng, _, _ := newEngineTestSetup(t, userEmailDef())
	ctx := context.Background()

	created, err := eng.FindOrCreateNode(ctx, storage.FindOrCreateNodeInput{
		Kind: "User", MatchOn: "email_unique", Props: map[string]any{"email": "ada@example.com", "name": "Ada"},
	})
	require.NoError(t, err)
	require.NoError(t, eng.DeleteNode(ctx, "User", created.Node.ID))

	resurrected, err := eng.FindOrCreateNode(ctx, storage.FindOrCreateNodeInput{
		Kind: "User", MatchOn: "email_unique", Props: map[string]any{"email": "ada@example.com", "name": "Ada Again"},
	})
	require.NoError(t, err)
	require.False(t, resurrected.Created)
	require.Equal(t, created.Node.ID, resurrected.Node.ID)
	require.Equal(t, "Ada Again", resurrected.Node.Props["name"])
	require.Nil(t, resurrected.Node.DeletedAt)
}

func TestEngineBulkFindOrCreateNodeDedupesWithinBatch(t *testing.T) {
	eng, _, _ := newEngineTestSetup(t, userEmailDef())
	ctx := context.Background()

	ins := []storage.FindOrCreateNodeInput{
		{Kind: "User", MatchOn: "email_unique", Props: map[string]any{"email": "ada@example.com", "name": "Ada"}},
		{Kind: "User", MatchOn: "email_unique", Props: map[string]any{"email": "bob@example.com", "name": "Bob"}},
		{Kind: "User", MatchOn: "email_unique", Props: map[string]any{"email": "ada@example.com", "name": "Ada Dup"}},
	}
	results, err := eng.BulkFindOrCreateNode(ctx, ins)
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.True(t, results[0].Created)
	require.True(t, results[1].Created)
	require.False(t, results[2].Created)
	require.Equal(t, results[0].Node.ID, results[2].Node.ID)
	require.NotEqual(t, results[0].Node.ID, results[1].Node.ID)
}

func TestEngineBulkFindOrCreateNodeAggregatesValidationFailures(t *testing.T) {
	eng, _, _ := newEngineTestSetup(t, userEmailDef())
	ctx := context.Background()

	ins := []storage.FindOrCreateNodeInput{
		{Kind: "User", MatchOn: "email_unique", Props: map[string]any{"email": "ada@example.com"}},
		{Kind: "NoSuchKind", MatchOn: "email_unique", Props: map[string]any{"email": "bob@example.com"}},
		{Kind: "User", MatchOn: "no_such_constraint", Props: map[string]any{"email": "cleo@example.com"}},
	}
	_, err := eng.BulkFindOrCreateNode(ctx, ins)
	require.Error(t, err)

	var agg *typegraph.AggregateError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Errors, 2)
}

func TestEngineBulkFindOrCreateNodeDedupeHonorsOnConflictUpdate(t *testing.T) {
	eng, _, _ := newEngineTestSetup(t, userEmailDef())
	ctx := context.Background()

	ins := []storage.FindOrCreateNodeInput{
		{Kind: "User", MatchOn: "email_unique", Props: map[string]any{"email": "ada@example.com", "name": "Ada"}},
		{Kind: "User", MatchOn: "email_unique", OnConflict: storage.OnConflictUpdate, Props: map[string]any{"email": "ada@example.com", "name": "Ada Lovelace"}},
	}
	results, err := eng.BulkFindOrCreateNode(ctx, ins)
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", results[0].Node.Props["name"])
	require.Equal(t, "Ada Lovelace", results[1].Node.Props["name"])
}
