package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/resumelab/ragsweep/internal/retry"
	"github.com/resumelab/ragsweep/pkg/models"
)

// Layout is the layout-aware parsing backend. It posts the raw document
// to a conversion service (docling-serve style API) that returns
// markdown preserving headings and tables, plus the detected regions.
type Layout struct {
	baseURL string
	client  *http.Client
	retry   retry.Config
}

var _ Parser = (*Layout)(nil)

// LayoutConfig configures the layout service client.
type LayoutConfig struct {
	// BaseURL is the service address, e.g. "http://localhost:5001".
	BaseURL string

	// Timeout bounds a single conversion call. Default: 120s; layout
	// models are slow on scanned documents.
	Timeout time.Duration
}

// NewLayout creates a layout-aware parser client.
func NewLayout(cfg LayoutConfig) (*Layout, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("layout parser: base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Layout{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		retry:   retry.DefaultConfig(),
	}, nil
}

// Name returns the backend tag.
func (l *Layout) Name() string {
	return "layout"
}

type layoutResponse struct {
	Markdown string `json:"markdown"`
	Regions  []struct {
		Title string `json:"title"`
		Kind  string `json:"kind"`
		Start int    `json:"start"`
		End   int    `json:"end"`
	} `json:"regions"`
}

// Parse converts the document through the layout service.
func (l *Layout) Parse(ctx context.Context, r io.Reader, filename string) (*ParseResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", filename, err)
	}

	result, err := retry.DoWithValue(ctx, l.retry, func() (*layoutResponse, error) {
		return l.convert(ctx, data, filename)
	})
	if err != nil {
		return nil, fmt.Errorf("layout parse %s: %w", filename, err)
	}

	out := &ParseResult{Content: Normalize(result.Markdown)}
	for _, region := range result.Regions {
		out.Layout = append(out.Layout, models.LayoutSpan{
			Title:       region.Title,
			Kind:        region.Kind,
			StartOffset: region.Start,
			EndOffset:   region.End,
		})
	}
	return out, nil
}

func (l *Layout) convert(ctx context.Context, data []byte, filename string) (*layoutResponse, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/v1/convert", &body)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("layout service returned %d: %s", resp.StatusCode, msg)
		if !retry.RetryableStatus(resp.StatusCode) {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	var result layoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode layout response: %w", err)
	}
	return &result, nil
}
