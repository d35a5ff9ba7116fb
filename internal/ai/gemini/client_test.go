package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/quote"
)

type fakeModels struct {
	mu    sync.Mutex
	calls []modelCall
	queue []fakeResponse
}

type modelCall struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

type fakeResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

func (f *fakeModels) enqueue(resp *genai.GenerateContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeResponse{resp: resp, err: err})
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, modelCall{model: model, contents: contents, config: config})
	if len(f.queue) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := f.queue[0]
	f.queue = f.queue[1:]
	return res.resp, res.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func stubSleep(t *testing.T) {
	t.Helper()
	originalSleep := sleep
	sleep = func(time.Duration) {}
	t.Cleanup(func() { sleep = originalSleep })
}

func TestGeneratorRetriesOnTemporaryError(t *testing.T) {
	stubSleep(t)

	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"})
	models.enqueue(textResponse("retry ok"), nil)

	g := newGenerator(models, Config{Model: "gemini-pro", MaxRetries: 2}, zap.NewNop())

	output, err := g.Generate(context.Background(), Request{System: "system", Prompt: "message"})
	require.NoError(t, err)
	assert.Equal(t, "retry ok", output)
	require.Len(t, models.calls, 2)

	for _, call := range models.calls {
		assert.Equal(t, "gemini-pro", call.model)
		require.NotNil(t, call.config)
		require.NotNil(t, call.config.SystemInstruction)
		assert.Equal(t, "system", call.config.SystemInstruction.Parts[0].Text)
		assert.Equal(t, "message", call.contents[0].Parts[0].Text)
	}
}

func TestGeneratorStopsAfterRetriesExhausted(t *testing.T) {
	stubSleep(t)

	models := &fakeModels{}
	tempErr := genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}
	models.enqueue(nil, tempErr)
	models.enqueue(nil, tempErr)

	g := newGenerator(models, Config{Model: "gemini-pro", MaxRetries: 2}, zap.NewNop())

	_, err := g.Generate(context.Background(), Request{Prompt: "msg"})
	require.Error(t, err)

	var apiErr genai.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Code)
	assert.Len(t, models.calls, 2)
}

func TestGeneratorDoesNotRetryOnLongQuotaDelay(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 60 seconds",
	})

	g := newGenerator(models, Config{Model: "gemini-pro", MaxRetries: 3}, zap.NewNop())

	_, err := g.Generate(context.Background(), Request{Prompt: "msg"})
	assert.Error(t, err)
	assert.Len(t, models.calls, 1)
}

func TestGeneratorDoesNotRetryClientErrors(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(nil, genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"})

	g := newGenerator(models, Config{MaxRetries: 3}, zap.NewNop())

	_, err := g.Generate(context.Background(), Request{Prompt: "msg"})
	assert.Error(t, err)
	assert.Len(t, models.calls, 1)
}

func TestGeneratorJSONRequestAndImages(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(textResponse(`{"ok":true}`), nil)

	g := newGenerator(models, Config{}, zap.NewNop())

	_, err := g.Generate(context.Background(), Request{
		System: "sys",
		Prompt: "payload",
		JSON:   true,
		Images: []quote.Image{
			{Name: "a.png", MIMEType: "image/png", Data: []byte{1, 2, 3}},
			{Name: "empty.png", MIMEType: "image/png"},
		},
	})
	require.NoError(t, err)

	call := models.calls[0]
	assert.Equal(t, defaultModel, call.model)
	assert.Equal(t, "application/json", call.config.ResponseMIMEType)
	assert.Equal(t, "sys\n\n"+jsonInstructions, call.config.SystemInstruction.Parts[0].Text)
	require.NotNil(t, call.config.Temperature)
	assert.Equal(t, float32(defaultTemperature), *call.config.Temperature)
	assert.EqualValues(t, defaultMaxOutputTokens, call.config.MaxOutputTokens)

	parts := call.contents[0].Parts
	require.Len(t, parts, 2, "prompt and one image part")
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/png", parts[1].InlineData.MIMEType)
}

func TestGeneratorRejectsEmptyPromptAndResponse(t *testing.T) {
	models := &fakeModels{}
	models.enqueue(textResponse("   "), nil)

	g := newGenerator(models, Config{}, zap.NewNop())

	_, err := g.Generate(context.Background(), Request{Prompt: "  "})
	assert.Error(t, err, "empty prompt")
	_, err = g.Generate(context.Background(), Request{Prompt: "hi"})
	assert.Error(t, err, "empty response")

	var nilGen *Generator
	_, err = nilGen.Generate(context.Background(), Request{Prompt: "hi"})
	assert.Error(t, err, "nil generator")
}

func TestParseRetryDelay(t *testing.T) {
	tests := []struct {
		message string
		want    time.Duration
		ok      bool
	}{
		{message: "retry after 60 seconds", want: 60 * time.Second, ok: true},
		{message: "Please retry in 1.5s.", want: 1500 * time.Millisecond, ok: true},
		{message: "retry in 250ms", want: 250 * time.Millisecond, ok: true},
		{message: "quota exhausted", ok: false},
	}

	for _, tt := range tests {
		got, ok := parseRetryDelay(tt.message)
		assert.Equal(t, tt.ok, ok, tt.message)
		assert.Equal(t, tt.want, got, tt.message)
	}
}
