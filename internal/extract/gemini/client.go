// Package gemini reads documents with Google's hosted Gemini models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/joseph-ayodele/rfq-tracker/internal/common"
	"github.com/joseph-ayodele/rfq-tracker/internal/extract"
	"github.com/joseph-ayodele/rfq-tracker/internal/rfq"
)

const defaultModel = "gemini-1.5-flash"

// Config for the Gemini client.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
}

// generator is the part of *genai.GenerativeModel the client uses.
type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client sends the source file itself (PDF or image) as an inline blob, so
// scanned documents without a text layer are still readable.
type Client struct {
	client *genai.Client
	model  string
	temp   float32
	log    *slog.Logger

	newModel func(schema rfq.Schema) generator
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, common.WrapError(common.ErrExtractorSetup, "gemini: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	gc, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	c := &Client{client: gc, model: cfg.Model, temp: cfg.Temperature, log: logger}
	c.newModel = c.generativeModel
	return c, nil
}

func (c *Client) generativeModel(schema rfq.Schema) generator {
	m := c.client.GenerativeModel(c.model)
	m.SetTemperature(c.temp)
	m.ResponseMIMEType = "application/json"
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{
			genai.Text(extract.BuildSystemPrompt(schema)),
			genai.Text(extract.SchemaPrompt(schema)),
		},
	}
	return m
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Extract implements extract.Extractor.
func (c *Client) Extract(ctx context.Context, src extract.Source) (extract.Raw, error) {
	rid := uuid.New().String()
	start := time.Now()

	schema, err := rfq.SchemaFor(src.Variant)
	if err != nil {
		return extract.Raw{}, err
	}
	attach := len(src.Data) > 0 && src.MIMEType != ""
	if !attach && strings.TrimSpace(src.Text) == "" {
		return extract.Raw{}, errors.New("gemini: source has neither file data nor text")
	}

	c.log.Info("extract.gemini.start",
		"req_id", rid,
		"model", c.model,
		"variant", schema.Variant,
		"file", src.Filename,
		"mime", src.MIMEType,
		"bytes", len(src.Data),
	)

	parts := []genai.Part{genai.Text(extract.BuildUserPrompt(src, attach))}
	if attach {
		parts = append(parts, genai.Blob{MIMEType: src.MIMEType, Data: src.Data})
	}

	resp, err := c.newModel(schema).GenerateContent(ctx, parts...)
	if err != nil {
		c.log.Error("extract.gemini.request_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return extract.Raw{}, fmt.Errorf("gemini: %w", err)
	}

	content := extract.StripCodeFence([]byte(responseText(resp)))
	if len(content) == 0 {
		c.log.Error("extract.gemini.empty_response", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return extract.Raw{}, errors.New("gemini: empty response")
	}
	if err := extract.ValidateJSON(schema, content); err != nil {
		c.log.Warn("extract.gemini.schema_mismatch", "req_id", rid, "error", err)
	}

	c.log.Info("extract.gemini.ok",
		"req_id", rid,
		"bytes", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return extract.Raw{JSON: content, Model: c.model}, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
