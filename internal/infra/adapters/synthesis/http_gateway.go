package synthesis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"virtual-tryon/internal/domain"
	"virtual-tryon/internal/domain/model"
	"virtual-tryon/internal/domain/ports/adapter"
)

var _ adapter.SynthesisGateway = (*HTTPGateway)(nil)

// HTTPGateway talks JSON to a self-hosted try-on model server.
//
//	POST <url> {"job_id","style","prompt","person":{"mime_type","data"},"garment":{...}}
//	200 {"image":{"mime_type","data"}} | non-2xx {"error":"..."}
//
// data fields are standard base64.
type HTTPGateway struct {
	url    string
	apiKey string
	client *http.Client
}

type wireImage struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type wireRequest struct {
	JobID   string    `json:"job_id"`
	Style   string    `json:"style"`
	Prompt  string    `json:"prompt"`
	Person  wireImage `json:"person"`
	Garment wireImage `json:"garment"`
}

type wireResponse struct {
	Image *wireImage `json:"image"`
	Error string     `json:"error"`
}

func NewHTTPGateway(url, apiKey string, client *http.Client) (*HTTPGateway, error) {
	if url == "" {
		return nil, errors.New("http gateway: empty url")
	}
	if client == nil {
		// per-call deadlines come from ctx
		client = &http.Client{Timeout: 10 * time.Minute}
	}
	return &HTTPGateway{url: url, apiKey: apiKey, client: client}, nil
}

func (h *HTTPGateway) Name() string { return "http" }

func (h *HTTPGateway) Synthesize(ctx context.Context, req adapter.SynthesisRequest) (*adapter.SynthesisResult, error) {
	body, err := json.Marshal(wireRequest{
		JobID:   req.JobID,
		Style:   string(req.Style),
		Prompt:  BuildPrompt(req.Style),
		Person:  wireImage{MIMEType: req.Person.MIMEType, Data: base64.StdEncoding.EncodeToString(req.Person.Data)},
		Garment: wireImage{MIMEType: req.Garment.MIMEType, Data: base64.StdEncoding.EncodeToString(req.Garment.Data)},
	})
	if err != nil {
		return nil, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		hreq.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("http gateway: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("http gateway: read body: %w", err)
	}
	var payload wireResponse
	decodeErr := json.Unmarshal(raw, &payload)

	if resp.StatusCode >= 300 {
		if decodeErr == nil && payload.Error != "" {
			return nil, fmt.Errorf("http gateway %d: %s", resp.StatusCode, payload.Error)
		}
		return nil, fmt.Errorf("http gateway %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, decodeErr)
	}
	if payload.Image == nil || payload.Image.Data == "" {
		return nil, fmt.Errorf("%w: response has no image", domain.ErrMalformedResponse)
	}
	data, err := base64.StdEncoding.DecodeString(payload.Image.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: image data: %v", domain.ErrMalformedResponse, err)
	}
	mime, ok := model.DetectImageType(data)
	if !ok {
		return nil, fmt.Errorf("%w: response image is %s", domain.ErrMalformedResponse, mime)
	}
	return &adapter.SynthesisResult{
		Image:    adapter.Image{Data: data, MIMEType: mime},
		Provider: h.Name(),
	}, nil
}
