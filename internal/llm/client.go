package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"birdwatch/internal/models"
	"birdwatch/internal/scoring"
)

// Client talks to an OpenAI-compatible /chat/completions endpoint. It is the
// generation gateway behind replies, summaries and the per-criterion
// sub-scores.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	prompts    *Prompts
}

// NewClient creates a generation client. prompts may be nil, in which case
// the compiled-in defaults are used.
func NewClient(baseURL, apiKey, model string, prompts *Prompts) *Client {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		prompts: prompts,
	}
}

// completion performs one synchronous chat completion.
func (c *Client) completion(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	messages := []map[string]string{}
	if system != "" {
		messages = append(messages, map[string]string{"role": "system", "content": system})
	}
	messages = append(messages, map[string]string{"role": "user", "content": user})

	reqBody := map[string]interface{}{
		"model":       c.model,
		"messages":    messages,
		"max_tokens":  maxTokens,
		"temperature": temperature,
		"stream":      false,
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(reqJSON))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("completion timed out: %w", models.ErrTransient)
		}
		return "", fmt.Errorf("completion request failed: %w", models.ErrTransient)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", classifyStatus(resp.StatusCode, string(body))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", models.ErrTransient)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response: %w", models.ErrTransient)
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

// classifyStatus maps API status codes onto the shared error taxonomy.
func classifyStatus(status int, body string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("API rate limited: %w", models.ErrRateLimited)
	case status == http.StatusBadRequest && strings.Contains(body, "content"):
		return fmt.Errorf("generation refused: %w", models.ErrContentFiltered)
	case status >= 500:
		return fmt.Errorf("API error (status %d): %w", status, models.ErrTransient)
	default:
		return fmt.Errorf("API error (status %d): %s", status, body)
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// GenerateReply produces a casual reply to item, using related historical
// items as context. Output is sanitized and hard-capped at 280 characters.
func (c *Client) GenerateReply(ctx context.Context, item models.Item, related []models.Item) (string, error) {
	var contextBlock strings.Builder
	if len(related) > 0 {
		contextBlock.WriteString("\n\nEarlier conversations worth knowing about:\n")
		for _, r := range related {
			fmt.Fprintf(&contextBlock, "- %s\n", firstN(r.Text, 100))
		}
	}

	prompt := fmt.Sprintf(c.prompts.Reply, item.Text) + contextBlock.String()
	reply, err := c.completion(ctx, c.prompts.ReplySystem, prompt, 100, 0.7)
	if err != nil {
		return "", err
	}
	return Sanitize(reply), nil
}

// GenerateSummary produces a single observation tweet from the window's top
// items (text plus score per item, the aggregate context).
func (c *Client) GenerateSummary(ctx context.Context, items []models.Item) (string, error) {
	var b strings.Builder
	for _, item := range items {
		fmt.Fprintf(&b, "Tweet: %s\nInsight score: %.0f\n\n", item.Text, item.Score)
	}

	prompt := fmt.Sprintf(c.prompts.Summary, b.String())
	summary, err := c.completion(ctx, c.prompts.SummarySystem, prompt, 200, 0.7)
	if err != nil {
		return "", err
	}
	return Sanitize(summary), nil
}

// Rate implements scoring.SubScorer: one rating call per criterion, returning
// a value in [0,1].
func (c *Client) Rate(ctx context.Context, criterion scoring.Criterion, text string) (float64, error) {
	guidance, ok := c.prompts.Criteria[string(criterion)]
	if !ok {
		guidance = string(criterion)
	}

	prompt := fmt.Sprintf(c.prompts.SubScore, guidance, text)
	raw, err := c.completion(ctx, c.prompts.SubScoreSystem, prompt, 10, 0.3)
	if err != nil {
		return 0, err
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable sub-score %q: %w", raw, models.ErrTransient)
	}
	return value / 100, nil
}

// Topics extracts up to three single-word topics from text.
func (c *Client) Topics(ctx context.Context, text string) ([]string, error) {
	raw, err := c.completion(ctx, c.prompts.TopicsSystem, fmt.Sprintf("Extract specific topics from this tweet: %s", text), 50, 0.3)
	if err != nil {
		return nil, err
	}

	var topics []string
	for _, topic := range strings.Split(raw, ",") {
		topic = strings.ToLower(strings.TrimSpace(topic))
		if topic != "" && !strings.Contains(topic, " ") {
			topics = append(topics, topic)
		}
	}
	if len(topics) > 3 {
		topics = topics[:3]
	}
	return topics, nil
}

// Tokens extracts token names and $symbols from text, uppercased with the $
// prefix removed.
func (c *Client) Tokens(ctx context.Context, text string) ([]string, error) {
	raw, err := c.completion(ctx, c.prompts.TokensSystem, fmt.Sprintf("Extract token names and symbols from this tweet: %s", text), 50, 0.3)
	if err != nil {
		return nil, err
	}

	var tokens []string
	for _, token := range strings.Split(raw, ",") {
		token = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(token), "$"))
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens, nil
}

// Sanitize strips quotation marks the model tends to wrap output in and
// enforces the 280-character tweet limit.
func Sanitize(text string) string {
	replacer := strings.NewReplacer(`"`, "", "“", "", "”", "")
	text = strings.TrimSpace(replacer.Replace(text))

	runes := []rune(text)
	if len(runes) > 280 {
		text = string(runes[:277]) + "..."
	}
	return text
}

func firstN(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
