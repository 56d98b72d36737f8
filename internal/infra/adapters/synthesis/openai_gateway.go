package synthesis

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"virtual-tryon/internal/domain"
	"virtual-tryon/internal/domain/model"
	"virtual-tryon/internal/domain/ports/adapter"
)

var _ adapter.SynthesisGateway = (*OpenAIGateway)(nil)

// OpenAIGateway uses the image edit endpoint with both inputs as reference images.
type OpenAIGateway struct {
	client openai.Client
	model  string
}

func NewOpenAIGateway(apiKey, modelName string, opts ...option.RequestOption) (*OpenAIGateway, error) {
	if apiKey == "" {
		return nil, errors.New("openai: empty api key")
	}
	if modelName == "" {
		modelName = string(openai.ImageModelGPTImage1)
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIGateway{client: openai.NewClient(opts...), model: modelName}, nil
}

func (o *OpenAIGateway) Name() string { return "openai" }

func (o *OpenAIGateway) Synthesize(ctx context.Context, req adapter.SynthesisRequest) (*adapter.SynthesisResult, error) {
	files := []io.Reader{
		openai.File(bytes.NewReader(req.Person.Data), "person"+model.ImageExtension(req.Person.MIMEType), req.Person.MIMEType),
		openai.File(bytes.NewReader(req.Garment.Data), "garment"+model.ImageExtension(req.Garment.MIMEType), req.Garment.MIMEType),
	}
	resp, err := o.client.Images.Edit(ctx, openai.ImageEditParams{
		Image:  openai.ImageEditParamsImageUnion{OfFileArray: files},
		Prompt: BuildPrompt(req.Style),
		Model:  openai.ImageModel(o.model),
		N:      openai.Int(1),
	})
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if resp == nil || len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("%w: openai returned no image", domain.ErrMalformedResponse)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("%w: openai image payload: %v", domain.ErrMalformedResponse, err)
	}
	mime, ok := model.DetectImageType(data)
	if !ok {
		return nil, fmt.Errorf("%w: openai returned %s", domain.ErrMalformedResponse, mime)
	}
	return &adapter.SynthesisResult{
		Image:    adapter.Image{Data: data, MIMEType: mime},
		Provider: o.Name(),
		Model:    o.model,
	}, nil
}
