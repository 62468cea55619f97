package intelligence

import (
	"context"
	"encoding/json"

	"github.com/ajitpratap0/marketoracle/internal/llm"
)

// fakeLLMClient implements llm.LLMClient with a canned Complete response, so
// agents can be exercised end to end without a live model.
type fakeLLMClient struct {
	content string
	err     error
	calls   int
}

func newFakeClientWithJSON(v interface{}) *fakeLLMClient {
	body, _ := json.Marshal(v)
	return &fakeLLMClient{content: string(body)}
}

func (f *fakeLLMClient) Complete(ctx context.Context, messages []llm.ChatMessage) (*llm.ChatResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	wire := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": f.content}},
		},
	}
	body, _ := json.Marshal(wire)
	resp := &llm.ChatResponse{}
	if err := json.Unmarshal(body, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (f *fakeLLMClient) CompleteWithRetry(ctx context.Context, messages []llm.ChatMessage, maxRetries int) (*llm.ChatResponse, error) {
	return f.Complete(ctx, messages)
}

func (f *fakeLLMClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := f.Complete(ctx, nil)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}

func (f *fakeLLMClient) ParseJSONResponse(content string, target interface{}) error {
	return (&llm.Client{}).ParseJSONResponse(content, target)
}

var _ llm.LLMClient = (*fakeLLMClient)(nil)
