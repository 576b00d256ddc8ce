// ABOUTME: HTTP client for the agent backend API used by the Telegram bot
// ABOUTME: Sends chat turns to POST /v2/chat with the x-app-key header

package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/UTXO-Global/utxo-global-tgbot/internal/auth"
)

// AgentClient talks to the agent backend's v2 chat endpoint.
type AgentClient struct {
	baseURL    string
	appKey     string
	botName    string
	httpClient *http.Client
}

// NewAgentClient creates a client for the agent API at baseURL.
// botName is the token_address the bot converses as.
func NewAgentClient(baseURL, appKey, botName string) *AgentClient {
	return &AgentClient{
		baseURL: baseURL,
		appKey:  appKey,
		botName: botName,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute, // the API blocks on model inference
		},
	}
}

type askRequest struct {
	Msg string `json:"msg"`
}

type askResponse struct {
	Response string `json:"response"`
}

// Ask runs one chat turn for the given user and returns the agent's reply.
func (c *AgentClient) Ask(ctx context.Context, userAddress, msg string) (string, error) {
	endpoint := fmt.Sprintf("%s/v2/chat?token_address=%s&user_address=%s",
		c.baseURL, url.QueryEscape(c.botName), url.QueryEscape(userAddress))

	body, err := json.Marshal(askRequest{Msg: msg})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.HeaderName, c.appKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("agent API returned status %d", resp.StatusCode)
	}

	var out askResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return out.Response, nil
}
