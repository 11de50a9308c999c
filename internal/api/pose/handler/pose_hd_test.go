package poseHandler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync/atomic"
	"testing"
	"time"

	"HeadTurner/internal/api/pose"
	poseService "HeadTurner/internal/api/pose/service"
	"HeadTurner/internal/entity"
	"HeadTurner/internal/middleware"
	"HeadTurner/pkg/dispatcher"
	"HeadTurner/pkg/handlerUtil"
	"HeadTurner/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	gorillaws "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type fakeEditor struct {
	calls atomic.Int32
	err   error
}

func (e *fakeEditor) EditImage(_ context.Context, image entity.Image, instruction string) (*entity.Image, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	return &entity.Image{Data: append([]byte("edited:"), image.Data...), MimeType: "image/png"}, nil
}

func newApp(t *testing.T, editor *fakeEditor) *fiber.App {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	d := dispatcher.New(editor, dispatcher.WithLogger(logger))
	u := utils.New()
	svc := poseService.NewPoseService(logger, d, nil, u)
	mw := middleware.New(logger, middleware.WithRateLimit(1000, 1000))

	app := fiber.New()
	app.Use(mw.NewRequestIDMiddleware())
	New(logger, validator.New(validator.WithRequiredStructEnabled()), mw, svc, u, 5*time.Second).Start(app.Group("/api/v1"))
	return app
}

func postJSON(t *testing.T, app *fiber.App, body interface{}) *http.Response {
	t.Helper()
	return postJSONTo(t, app, "/api/v1/pose/generate", body)
}

func postJSONTo(t *testing.T, app *fiber.App, target string, body interface{}) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestGenerate_JSON(t *testing.T) {
	editor := &fakeEditor{}
	app := newApp(t, editor)
	body := pose.GenerateRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(pngHeader),
		Yaw:         30,
		Pitch:       0,
	}

	first := decode[pose.GenerateResponse](t, postJSON(t, app, body))
	second := decode[pose.GenerateResponse](t, postJSON(t, app, body))

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Image, second.Image)
	assert.Contains(t, first.Prompt, "30 degrees to the subject's right")
	assert.Equal(t, int32(1), editor.calls.Load())
}

func TestGenerate_Multipart(t *testing.T) {
	app := newApp(t, &fakeEditor{})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="face.png"`)
	header.Set("Content-Type", "image/png")
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(pngHeader)
	require.NoError(t, err)
	require.NoError(t, w.WriteField("yaw", "-20"))
	require.NoError(t, w.WriteField("pitch", "15"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pose/generate", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[pose.GenerateResponse](t, resp)
	assert.Contains(t, got.Prompt, "20 degrees to the subject's left")
	assert.Contains(t, got.Prompt, "15 degrees upward")
}

func TestGenerate_AngleValidation(t *testing.T) {
	editor := &fakeEditor{}
	app := newApp(t, editor)

	resp := postJSON(t, app, pose.GenerateRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(pngHeader),
		Yaw:         60,
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", decode[handlerUtil.ErrorResponse](t, resp).Code)
	assert.Zero(t, editor.calls.Load())
}

func TestGenerate_NotAnImage(t *testing.T) {
	app := newApp(t, &fakeEditor{})

	resp := postJSON(t, app, pose.GenerateRequest{
		ImageBase64: base64.StdEncoding.EncodeToString([]byte("plain text, not pixels")),
	})

	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestGenerate_InvalidBase64(t *testing.T) {
	editor := &fakeEditor{}
	app := newApp(t, editor)

	resp := postJSON(t, app, pose.GenerateRequest{ImageBase64: "%%% not base64 %%%"})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_IMAGE", decode[handlerUtil.ErrorResponse](t, resp).Code)
	assert.Zero(t, editor.calls.Load())
}

func TestForget_NextGenerateCallsEditorAgain(t *testing.T) {
	editor := &fakeEditor{}
	app := newApp(t, editor)
	body := pose.GenerateRequest{ImageBase64: base64.StdEncoding.EncodeToString(pngHeader), Yaw: 12}

	require.Equal(t, http.StatusOK, postJSON(t, app, body).StatusCode)

	resp := postJSONTo(t, app, "/api/v1/pose/forget", body)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	again := decode[pose.GenerateResponse](t, postJSON(t, app, body))
	assert.False(t, again.Cached)
	assert.Equal(t, int32(2), editor.calls.Load())
}

func TestForget_Validation(t *testing.T) {
	app := newApp(t, &fakeEditor{})

	resp := postJSONTo(t, app, "/api/v1/pose/forget", pose.GenerateRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(pngHeader),
		Pitch:       -31,
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", decode[handlerUtil.ErrorResponse](t, resp).Code)
}

func TestGenerate_RefusalThenRetry(t *testing.T) {
	editor := &fakeEditor{err: dispatcher.ErrNoImage}
	app := newApp(t, editor)
	body := pose.GenerateRequest{ImageBase64: base64.StdEncoding.EncodeToString(pngHeader), Pitch: -10}

	resp := postJSON(t, app, body)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	failure := decode[handlerUtil.ErrorResponse](t, resp)
	assert.Equal(t, "REFUSED", failure.Code)
	assert.True(t, failure.Retryable)

	editor.err = nil
	resp = postJSON(t, app, body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), editor.calls.Load())
}

func TestGenerate_ExternalError(t *testing.T) {
	app := newApp(t, &fakeEditor{err: errors.New("upstream exploded")})

	resp := postJSON(t, app, pose.GenerateRequest{ImageBase64: base64.StdEncoding.EncodeToString(pngHeader)})

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, decode[handlerUtil.ErrorResponse](t, resp).Error, "upstream exploded")
}

func TestPrompt(t *testing.T) {
	app := newApp(t, &fakeEditor{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/pose/prompt?yaw=6&pitch=-6", nil))
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[pose.PromptResponse](t, resp)
	assert.Equal(t, "6 degrees to the subject's right", got.YawPhrase)
	assert.Equal(t, "6 degrees downward", got.PitchPhrase)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/pose/prompt?yaw=0&pitch=31", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIndicator(t *testing.T) {
	app := newApp(t, &fakeEditor{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/pose/indicator?yaw=10&pitch=10", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "image/svg+xml")
	assert.Contains(t, string(body), "<svg")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/pose/indicator?yaw=10&pitch=10&format=json", nil))
	require.NoError(t, err)
	got := decode[map[string]interface{}](t, resp)
	assert.EqualValues(t, 10, got["yaw"])
	assert.Len(t, got["curves"], 4)
}

func TestStats(t *testing.T) {
	app := newApp(t, &fakeEditor{})
	postJSON(t, app, pose.GenerateRequest{ImageBase64: base64.StdEncoding.EncodeToString(pngHeader)})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/pose/stats", nil))
	require.NoError(t, err)

	got := decode[dispatcher.Stats](t, resp)
	assert.Equal(t, int64(1), got.Misses)
	assert.Equal(t, int64(1), got.EditorCalls)
}

func TestPreviewWebSocket(t *testing.T) {
	app := newApp(t, &fakeEditor{})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	conn, _, err := gorillaws.DefaultDialer.Dial(fmt.Sprintf("ws://%s/api/v1/pose/ws", ln.Addr()), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(pose.AnglesRequest{Yaw: -40, Pitch: 0}))
	var preview pose.PreviewResponse
	require.NoError(t, conn.ReadJSON(&preview))
	assert.Equal(t, "40 degrees to the subject's left", preview.Prompt.YawPhrase)
	assert.Equal(t, -40, preview.Indicator.Yaw)

	require.NoError(t, conn.WriteJSON(pose.AnglesRequest{Yaw: 90}))
	var failure map[string]string
	require.NoError(t, conn.ReadJSON(&failure))
	assert.Equal(t, pose.ErrInvalidAngle.Error(), failure["error"])
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	app := newApp(t, &fakeEditor{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/pose/ws", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
