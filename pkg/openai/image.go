package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"

	"HeadTurner/internal/entity"
	"HeadTurner/pkg/dispatcher"

	"github.com/sashabaranov/go-openai"
)

type IImageEditor interface {
	EditImage(ctx context.Context, image entity.Image, instruction string) (*entity.Image, error)
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

type imageEditor struct {
	client     *openai.Client
	httpClient *http.Client
	model      string
}

func NewImageEditor(cfg Config) (IImageEditor, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai API key is required")
	}

	model := cfg.Model
	if model == "" {
		model = openai.CreateImageModelGptImage1
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &imageEditor{
		client:     openai.NewClientWithConfig(config),
		httpClient: &http.Client{},
		model:      model,
	}, nil
}

// upload names the multipart part so the API can infer the image format.
type upload struct {
	*bytes.Reader
	name        string
	contentType string
}

func (u upload) Name() string        { return u.name }
func (u upload) ContentType() string { return u.contentType }

func newUpload(image entity.Image) upload {
	contentType := image.MimeType
	if contentType == "" {
		contentType = "image/png"
	}

	ext := ".png"
	switch contentType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/webp":
		ext = ".webp"
	}

	return upload{
		Reader:      bytes.NewReader(image.Data),
		name:        "portrait" + ext,
		contentType: contentType,
	}
}

func (e *imageEditor) EditImage(ctx context.Context, image entity.Image, instruction string) (*entity.Image, error) {
	req := openai.ImageEditRequest{
		Image:  newUpload(image),
		Prompt: instruction,
		Model:  e.model,
		N:      1,
	}
	// gpt-image-1 always answers with base64 and rejects the parameter.
	if e.model == openai.CreateImageModelDallE2 {
		req.ResponseFormat = openai.CreateImageResponseFormatB64JSON
	}

	res, err := e.client.CreateEditImage(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}

	return e.imageFromResponse(ctx, res)
}

func (e *imageEditor) imageFromResponse(ctx context.Context, res openai.ImageResponse) (*entity.Image, error) {
	for _, item := range res.Data {
		if item.B64JSON != "" {
			data, err := base64.StdEncoding.DecodeString(item.B64JSON)
			if err != nil {
				return nil, fmt.Errorf("decode image payload: %w", err)
			}
			return &entity.Image{Data: data, MimeType: http.DetectContentType(data)}, nil
		}
		if item.URL != "" {
			return e.download(ctx, item.URL)
		}
	}

	return nil, dispatcher.ErrNoImage
}

func (e *imageEditor) download(ctx context.Context, url string) (*entity.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download edited image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download edited image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download edited image: %w", err)
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return &entity.Image{Data: data, MimeType: mimeType}, nil
}

func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", dispatcher.ErrRateLimited, err)
		case apiErr.Code == "moderation_blocked" || apiErr.Type == "image_generation_user_error":
			return fmt.Errorf("%w: %v", dispatcher.ErrNoImage, err)
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", dispatcher.ErrRateLimited, err)
	}

	return err
}
