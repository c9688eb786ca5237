package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/rfq-tracker/internal/extract"
	"github.com/joseph-ayodele/rfq-tracker/internal/rfq"
)

// Extract implements extract.Extractor with chat/completions in JSON mode.
// Images are attached as data URLs; PDFs are sent as their text layer.
func (c *Client) Extract(ctx context.Context, src extract.Source) (extract.Raw, error) {
	rid := uuid.New().String()
	start := time.Now()

	schema, err := rfq.SchemaFor(src.Variant)
	if err != nil {
		return extract.Raw{}, err
	}
	attach := strings.HasPrefix(src.MIMEType, "image/") && len(src.Data) > 0
	if !attach && strings.TrimSpace(src.Text) == "" {
		return extract.Raw{}, fmt.Errorf("openai: %s has no text layer and is not an image", src.Filename)
	}

	c.log.Info("extract.openai.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"variant", schema.Variant,
		"file", src.Filename,
		"mime", src.MIMEType,
		"image_attached", attach,
		"text_len", len(src.Text),
	)

	user := []map[string]any{
		{"type": "text", "text": extract.BuildUserPrompt(src, attach)},
	}
	if attach {
		user = append(user, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": extract.DataURL(src.MIMEType, src.Data)},
		})
	}
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": extract.BuildSystemPrompt(schema)},
			{"role": "system", "content": extract.SchemaPrompt(schema)},
			{"role": "user", "content": user},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, status, err := extract.SendJSON(ctx, c.httpClient, endpoint, body, headers, c.log)
	if err != nil {
		c.log.Error("extract.openai.http_error",
			"req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return extract.Raw{}, fmt.Errorf("openai: %w", err)
	}

	var cc struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("extract.openai.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return extract.Raw{}, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("extract.openai.no_choices", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
		return extract.Raw{}, fmt.Errorf("no choices in openai response")
	}
	content := extract.StripCodeFence([]byte(cc.Choices[0].Message.Content))

	if err := extract.ValidateJSON(schema, content); err != nil {
		c.log.Warn("extract.openai.schema_mismatch", "req_id", rid, "error", err)
	}

	model := cc.Model
	if model == "" {
		model = c.cfg.Model
	}
	c.log.Info("extract.openai.ok",
		"req_id", rid,
		"model", model,
		"bytes", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return extract.Raw{JSON: content, Model: model}, nil
}
