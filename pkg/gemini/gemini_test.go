package gemini

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"HeadTurner/pkg/dispatcher"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestImageFromResponse(t *testing.T) {
	t.Run("first image blob wins", func(t *testing.T) {
		res := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{
					genai.Text("here you go"),
					genai.Blob{MIMEType: "image/png", Data: []byte("png-bytes")},
					genai.Blob{MIMEType: "image/jpeg", Data: []byte("jpeg-bytes")},
				}},
			}},
		}

		img, err := imageFromResponse(res)

		require.NoError(t, err)
		assert.Equal(t, "image/png", img.MimeType)
		assert.Equal(t, []byte("png-bytes"), img.Data)
	})

	t.Run("text only is a refusal", func(t *testing.T) {
		res := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text("I can't help with that.")}},
			}},
		}

		_, err := imageFromResponse(res)
		assert.ErrorIs(t, err, dispatcher.ErrNoImage)
	})

	t.Run("no candidates is a refusal", func(t *testing.T) {
		_, err := imageFromResponse(&genai.GenerateContentResponse{})
		assert.ErrorIs(t, err, dispatcher.ErrNoImage)

		_, err = imageFromResponse(nil)
		assert.ErrorIs(t, err, dispatcher.ErrNoImage)
	})

	t.Run("empty blob is skipped", func(t *testing.T) {
		res := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{
				{Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}}}},
				{Content: nil},
				{Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/webp", Data: []byte("w")}}}},
			},
		}

		img, err := imageFromResponse(res)
		require.NoError(t, err)
		assert.Equal(t, "image/webp", img.MimeType)
	})
}

func TestMapError(t *testing.T) {
	blocked := &genai.BlockedError{PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety}}
	assert.ErrorIs(t, mapError(blocked), dispatcher.ErrNoImage)

	quota := fmt.Errorf("generate: %w", &googleapi.Error{Code: http.StatusTooManyRequests, Message: "quota"})
	assert.ErrorIs(t, mapError(quota), dispatcher.ErrRateLimited)

	other := errors.New("dial tcp: refused")
	assert.Same(t, other, mapError(other))
}
