package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ipc "credit-workers/internal/workers/catalog/index-product-catalog"
	irc "credit-workers/internal/workers/catalog/index-rank-catalog"
)

// ==========================
// Test doubles
// ==========================

type recordingSink struct {
	rankBatches [][]irc.RankInput
	products    []*ipc.Input
	failRanks   int
	closed      bool
}

func (s *recordingSink) LoadRanks(_ context.Context, ranks []irc.RankInput) (*irc.Output, error) {
	s.rankBatches = append(s.rankBatches, ranks)
	return &irc.Output{
		Success:      true,
		Message:      "ok",
		TotalRanks:   len(ranks),
		CreatedRanks: len(ranks) - s.failRanks,
		FailedRanks:  s.failRanks,
	}, nil
}

func (s *recordingSink) LoadProducts(_ context.Context, input *ipc.Input) (*ipc.Output, error) {
	s.products = append(s.products, input)
	return &ipc.Output{Success: true, Message: "ok", IndexedProducts: len(input.Products)}, nil
}

func (s *recordingSink) Close() { s.closed = true }

func runWith(t *testing.T, sink *recordingSink, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmdWithSink(func(context.Context, *options, bool) (catalogSink, error) {
		return sink, nil
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func seedPath(t *testing.T) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("..", "..", "..", "configs", "seed", "catalog.yaml"))
	require.NoError(t, err)
	return path
}

// ==========================
// Seed parsing
// ==========================

func TestLoadSeed(t *testing.T) {
	seed, err := LoadSeed(seedPath(t))
	require.NoError(t, err)

	require.Len(t, seed.Ranks, 5)
	assert.Equal(t, "BRONZE", seed.Ranks[0].ID)
	assert.NotEmpty(t, seed.Ranks[0].Description)

	entries := seed.ProductEntries()
	require.Len(t, entries, 4)
	first := entries[0]
	assert.Equal(t, "S/", first.Currency)
	assert.Equal(t, "500", first.MinimumAmount.String())
	assert.Equal(t, "18.5", first.MinimumRate.String())
	assert.True(t, first.Active)
	assert.Len(t, first.Requirements, 2)
}

func TestLoadSeed_RejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ranks:\n  - id: GOLD\n    nmae: Gold\n"), 0o600))

	_, err := LoadSeed(path)
	assert.Error(t, err)
}

func TestChunk(t *testing.T) {
	ranks := make([]irc.RankInput, 7)
	batches := chunk(ranks, 3)

	require.Len(t, batches, 3)
	assert.Len(t, batches[2], 1)
	assert.Len(t, chunk(ranks, 0), 1)
	assert.Empty(t, chunk(nil, 50))
}

// ==========================
// Commands
// ==========================

func TestLoadCommand(t *testing.T) {
	sink := &recordingSink{}

	out, err := runWith(t, sink, "load", "--batch-size", "2", seedPath(t))
	require.NoError(t, err)

	assert.Len(t, sink.rankBatches, 3)
	require.Len(t, sink.products, 1)
	assert.Len(t, sink.products[0].Products, 4)
	assert.False(t, sink.products[0].SyncFromDatabase)
	assert.True(t, sink.closed)
	assert.Contains(t, out, "products: ok")
}

func TestLoadCommand_ReportsFailures(t *testing.T) {
	sink := &recordingSink{failRanks: 1}

	_, err := runWith(t, sink, "load", seedPath(t))
	assert.ErrorContains(t, err, "failed to index")
}

func TestSyncCommand(t *testing.T) {
	sink := &recordingSink{}

	_, err := runWith(t, sink, "sync")
	require.NoError(t, err)
	require.Len(t, sink.products, 1)
	assert.True(t, sink.products[0].SyncFromDatabase)
}

// ==========================
// API sink
// ==========================

func TestAPISink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/ranks/upload-batch":
			var in irc.Input
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(irc.Output{Success: true, TotalRanks: len(in.Ranks), CreatedRanks: len(in.Ranks)})
		case "/api/v1/products/index":
			var in ipc.Input
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			_ = json.NewEncoder(w).Encode(ipc.Output{Success: true, TotalProducts: len(in.Products)})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	sink := newAPISink(srv.URL, time.Second)
	ctx := context.Background()

	ranks, err := sink.LoadRanks(ctx, []irc.RankInput{{ID: "GOLD", Name: "Gold"}})
	require.NoError(t, err)
	assert.Equal(t, 1, ranks.CreatedRanks)

	seed, err := LoadSeed(seedPath(t))
	require.NoError(t, err)
	products, err := sink.LoadProducts(ctx, &ipc.Input{Products: seed.ProductEntries()})
	require.NoError(t, err)
	assert.Equal(t, 4, products.TotalProducts)
}
