package companion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OpenAI calls any service that speaks the OpenAI chat-completions wire
// format.
type OpenAI struct {
	HTTPClient *http.Client
	URL        string
	APIKey     string
	Model      string
}

// NewOpenAI creates a client for the completions endpoint at url.
// A nil httpClient means http.DefaultClient.
func NewOpenAI(httpClient *http.Client, url, apiKey, model string) *OpenAI {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OpenAI{
		HTTPClient: httpClient,
		URL:        url,
		APIKey:     apiKey,
		Model:      model,
	}
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Complete sends messages and returns the first choice. Every failure
// matches ErrProvider.
func (o *OpenAI) Complete(ctx context.Context, messages []Message) (Message, error) {
	body, err := json.Marshal(chatRequest{Model: o.Model, Messages: messages})
	if err != nil {
		return Message{}, fmt.Errorf("%w: marshaling request: %w", ErrProvider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.URL, bytes.NewReader(body))
	if err != nil {
		return Message{}, fmt.Errorf("%w: creating request: %w", ErrProvider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.APIKey)
	}

	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return Message{}, fmt.Errorf("%w: sending request: %w", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Message{}, readStatusError(resp)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Message{}, fmt.Errorf("%w: decoding response: %w", ErrProvider, err)
	}
	if len(decoded.Choices) == 0 {
		return Message{}, fmt.Errorf("%w: response has no choices", ErrProvider)
	}

	reply := decoded.Choices[0].Message
	if strings.TrimSpace(reply.Content) == "" {
		return Message{}, fmt.Errorf("%w: empty reply", ErrProvider)
	}
	if reply.Role == "" {
		reply.Role = RoleAssistant
	}
	return reply, nil
}

// readStatusError parses {"error":{"type":"...","message":"..."}} bodies
// and falls back to the raw text.
func readStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var wire struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &wire) == nil && wire.Error.Message != "" {
		return &StatusError{StatusCode: resp.StatusCode, Type: wire.Error.Type, Message: wire.Error.Message}
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: string(body)}
}
