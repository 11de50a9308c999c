package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"HeadTurner/internal/entity"
	"HeadTurner/pkg/dispatcher"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const DefaultModelName = "gemini-2.5-flash-image"

type IGemini interface {
	EditImage(ctx context.Context, image entity.Image, instruction string) (*entity.Image, error)
	ListModels(ctx context.Context, method string) ([]ModelInfo, error)
	Close() error
}

type Config struct {
	APIKey    string
	ModelName string
}

type ModelInfo struct {
	Name        string
	DisplayName string
	Description string
}

type geminiClient struct {
	modelName string
	client    *genai.Client
}

func NewGeminiClient(ctx context.Context, cfg Config) (IGemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	modelName := cfg.ModelName
	if modelName == "" {
		modelName = DefaultModelName
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, err
	}

	return &geminiClient{
		modelName: modelName,
		client:    client,
	}, nil
}

func (g *geminiClient) EditImage(ctx context.Context, image entity.Image, instruction string) (*entity.Image, error) {
	model := g.client.GenerativeModel(g.modelName)

	mimeType := image.MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}

	res, err := model.GenerateContent(ctx, genai.Text(instruction), genai.Blob{MIMEType: mimeType, Data: image.Data})
	if err != nil {
		return nil, mapError(err)
	}

	return imageFromResponse(res)
}

// imageFromResponse returns the first inline image in any candidate. Text
// parts are ignored: a text-only answer means the model declined the edit.
func imageFromResponse(res *genai.GenerateContentResponse) (*entity.Image, error) {
	if res == nil {
		return nil, dispatcher.ErrNoImage
	}

	for _, cand := range res.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			blob, ok := part.(genai.Blob)
			if !ok || len(blob.Data) == 0 {
				continue
			}
			if !strings.HasPrefix(blob.MIMEType, "image/") {
				continue
			}
			return &entity.Image{Data: blob.Data, MimeType: blob.MIMEType}, nil
		}
	}

	return nil, dispatcher.ErrNoImage
}

func mapError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return fmt.Errorf("%w: %v", dispatcher.ErrNoImage, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", dispatcher.ErrRateLimited, err)
	}

	return err
}

func (g *geminiClient) ListModels(ctx context.Context, method string) ([]ModelInfo, error) {
	var models []ModelInfo

	it := g.client.ListModels(ctx)
	for {
		m, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}

		if method != "" && !slices.Contains(m.SupportedGenerationMethods, method) {
			continue
		}
		models = append(models, ModelInfo{
			Name:        m.Name,
			DisplayName: m.DisplayName,
			Description: m.Description,
		})
	}

	return models, nil
}

func (g *geminiClient) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
