package server

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/rfq-tracker/internal/extract"
	"github.com/joseph-ayodele/rfq-tracker/internal/repository"
	"github.com/joseph-ayodele/rfq-tracker/internal/rfq"
	"github.com/joseph-ayodele/rfq-tracker/internal/service"
)

const validDoc = `{"fullText": "Please quote", "metadata": {"rfqNumber": "RFQ-1"}, "items": [{"description": "Gate valve", "quantity": "3"}]}`

const invalidDoc = `{"fullText": "", "items": []}`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, modelAnswer string) (*service.RFQService, *repository.DB) {
	t.Helper()
	logger := quietLogger()
	db, err := repository.Open(context.Background(), repository.Config{
		Driver: "sqlite",
		DSN:    "file:" + filepath.Join(t.TempDir(), "rfq.db"),
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(logger) })

	svc := service.NewRFQService(logger, service.Deps{
		Jobs: repository.NewExtractJobRepository(db.Driver, logger),
		Extractor: extract.ExtractorFunc(func(context.Context, extract.Source) (extract.Raw, error) {
			return extract.Raw{JSON: []byte(modelAnswer), Model: "fake-1"}, nil
		}),
		TenantDefaults: func(tenant string) map[string]string {
			if tenant == "acme" {
				return map[string]string{rfq.KeyCurrency: "USD"}
			}
			return nil
		},
	})
	return svc, db
}
