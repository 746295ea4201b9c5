package testdata

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"

	"api-contract-fuzzer/internal/schema"
	"api-contract-fuzzer/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubSource struct {
	values []any
	err    error
	calls  []string
}

func (s *stubSource) Sample(_ context.Context, token types.Token, n int) ([]any, error) {
	s.calls = append(s.calls, token.Name)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.values) > n {
		return s.values[:n], nil
	}
	return s.values, nil
}

func testPools() types.Pools {
	return NewPools(map[string]types.Token{
		"id":     {Name: "id", In: "path", Schema: schema.JSON{Schema: &schema.Number{Integer: true, Minimum: fptr(1), Maximum: fptr(3)}}},
		"filter": {Name: "filter", In: "query", Schema: schema.JSON{Schema: &schema.Enum{Values: []any{"a", "b"}}}},
		"code":   {Name: "code", In: "query", Schema: schema.JSON{Schema: &schema.String{Pattern: "^(x|y)$"}}},
	})
}

func TestFillerFillsEveryPool(t *testing.T) {
	pools := testPools()
	delete(pools, "code")

	filler := NewFiller(SourceFaker, map[string]Source{
		SourceFaker: NewFakerSource(rand.New(rand.NewSource(3))),
	}, nil, zaptest.NewLogger(t))

	require.NoError(t, filler.Fill(context.Background(), pools, 5))
	assert.Empty(t, pools.Empty())

	for _, v := range pools.Values("id") {
		assert.Contains(t, []any{int64(1), int64(2), int64(3)}, v)
	}
	for _, v := range pools.Values("filter") {
		assert.Contains(t, []any{"a", "b"}, v)
	}
	assert.Len(t, pools.Values("filter"), 5)
}

func TestFillerIsBestEffort(t *testing.T) {
	pools := testPools()
	pools["id"].AvailableTokens = []any{99}

	failing := &stubSource{err: errors.New("connection refused")}
	fixed := &stubSource{values: []any{"x", "y"}}
	filler := NewFiller(SourceFaker, map[string]Source{
		SourceFaker:    NewFakerSource(rand.New(rand.NewSource(3))),
		SourceDatabase: failing,
		SourceLLM:      fixed,
	}, map[string]string{"id": SourceDatabase, "code": SourceLLM}, zaptest.NewLogger(t))

	err := filler.Fill(context.Background(), pools, 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token id: connection refused")

	assert.Equal(t, []string{"id"}, pools.Empty())
	assert.Equal(t, []any{"x", "y"}, pools.Values("code"))
	assert.Len(t, pools.Values("filter"), 4)
	assert.Equal(t, []string{"id"}, failing.calls)
}

func TestFillerCollectsEveryFailure(t *testing.T) {
	pools := testPools()
	filler := NewFiller(SourceLLM, map[string]Source{
		SourceFaker: NewFakerSource(rand.New(rand.NewSource(3))),
		SourceLLM:   &stubSource{},
	}, map[string]string{"filter": SourceDatabase, "id": SourceFaker}, nil)

	err := filler.Fill(context.Background(), pools, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `token filter: pool source "database" is not configured`)
	assert.Contains(t, err.Error(), `token code: source "llm" returned no values`)
	assert.Equal(t, []string{"code", "filter"}, pools.Empty())
	assert.Len(t, pools.Values("id"), 2)
}

func TestPoolsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tokens.json")
	pools := testPools()
	pools["filter"].AvailableTokens = []any{"a", "b"}

	require.NoError(t, SavePools(path, pools))
	loaded, err := LoadPools(path)
	require.NoError(t, err)

	assert.Len(t, loaded, 3)
	assert.Equal(t, []any{"a", "b"}, loaded.Values("filter"))
	assert.Equal(t, []any{}, loaded.Values("id"))
	assert.Equal(t, "query", loaded["code"].Token.In)
	assert.Equal(t, &schema.String{Pattern: "^(x|y)$"}, loaded["code"].Token.Schema.Schema)
}

func TestLoadPoolsErrors(t *testing.T) {
	_, err := LoadPools(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "failed to read token pool file")
}
