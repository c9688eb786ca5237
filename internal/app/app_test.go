package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/rfq-tracker/internal/common"
	"github.com/joseph-ayodele/rfq-tracker/internal/service"
	"github.com/joseph-ayodele/rfq-tracker/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	dir := t.TempDir()
	return &common.Config{
		Database: common.DatabaseConfig{Driver: "sqlite", DSN: "file:" + filepath.Join(dir, "rfq.db")},
		LLM:      common.LLMConfig{Provider: "openai", RatePerMinute: 60, Timeout: time.Second},
		Cache:    common.CacheConfig{TTL: time.Hour},
		Storage:  common.StorageConfig{Dir: filepath.Join(dir, "artifacts")},
		Brand:    common.BrandConfig{CompanyName: "Nordic Valves AB"},
	}
}

func TestBuild_WithoutAPIKeyDisablesExtraction(t *testing.T) {
	cfg := testConfig(t)
	a, err := Build(context.Background(), cfg, quietLogger(), Options{Database: true, Store: true, Extractor: true})
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.DB)
	_, err = a.Service.Extract(context.Background(), service.Upload{Filename: "a.pdf", Data: []byte("%PDF-1.4\n%%EOF\n")})
	assert.ErrorIs(t, err, common.ErrExtractorSetup)

	// JSON round trips do not need a model
	out, err := a.Service.Extract(context.Background(), service.Upload{
		Filename: "doc.json",
		Data:     []byte(`{"fullText": "x", "items": [{"description": "Seal"}]}`),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out.SourceKey)
}

func TestBuild_NoCollaborators(t *testing.T) {
	a, err := Build(context.Background(), testConfig(t), quietLogger(), Options{})
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.DB)
	res, err := a.Service.Normalize(context.Background(), "rfq", []byte(`{"fullText": "x", "items": [{"description": "Seal"}]}`))
	require.NoError(t, err)
	assert.True(t, res.OK())

	_, err = a.Service.Extract(context.Background(), service.Upload{Filename: "doc.json", Data: []byte(`{"fullText": "x"}`)})
	assert.ErrorIs(t, err, common.ErrExtractorSetup)
}

func TestNewExtractor(t *testing.T) {
	ctx := context.Background()

	_, _, err := NewExtractor(ctx, common.LLMConfig{Provider: "llama"}, common.CacheConfig{}, quietLogger())
	assert.ErrorIs(t, err, common.ErrExtractorSetup)

	_, _, err = NewExtractor(ctx, common.LLMConfig{Provider: "openai"}, common.CacheConfig{}, quietLogger())
	assert.ErrorIs(t, err, common.ErrExtractorSetup)

	ex, closers, err := NewExtractor(ctx, common.LLMConfig{Provider: "openai", APIKey: "sk-test"}, common.CacheConfig{TTL: time.Minute}, quietLogger())
	require.NoError(t, err)
	assert.NotNil(t, ex)
	assert.Empty(t, closers)
}

func TestNewStore_Local(t *testing.T) {
	store, err := NewStore(context.Background(), common.StorageConfig{Dir: t.TempDir()}, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &storage.FSStore{}, store)
}

func TestBrandFromConfig(t *testing.T) {
	b := BrandFromConfig(common.BrandConfig{CompanyName: "ACME", Footer: "Thank you"})
	assert.Equal(t, "ACME", b.CompanyName)
	assert.Equal(t, "Thank you", b.Footer)
}
