package llm

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Prompts holds every template the client sends. Fields left empty in a
// prompts file keep their compiled-in default.
type Prompts struct {
	ReplySystem    string            `yaml:"reply_system"`
	Reply          string            `yaml:"reply"`
	SummarySystem  string            `yaml:"summary_system"`
	Summary        string            `yaml:"summary"`
	SubScoreSystem string            `yaml:"subscore_system"`
	SubScore       string            `yaml:"subscore"`
	Criteria       map[string]string `yaml:"criteria"`
	TopicsSystem   string            `yaml:"topics_system"`
	TokensSystem   string            `yaml:"tokens_system"`
}

// DefaultPrompts returns the built-in templates.
func DefaultPrompts() *Prompts {
	return &Prompts{
		ReplySystem: "You are a helpful assistant that generates engaging Twitter replies. " +
			"Keep responses concise and relevant. Never use quotation marks.",
		Reply: `Tweet to reply to:
%s

Generate a casual reply that:
1. Stays relevant to the tweet
2. Uses all lowercase (like casual texting)
3. Keeps it under 100 chars
4. Same language as original tweet
5. NO hashtags, NO emojis, NO quotation marks
6. Sounds like a friend chatting (not a formal reply)

Example good reply: never thought about it that way
Example bad reply: "Thank you for sharing! This is a very interesting perspective."

Make it sound natural and conversational, not like an assistant.
IMPORTANT: Never use quotation marks in the reply.`,

		SummarySystem: "You are a helpful assistant that generates insightful tweets about crypto and market trends. " +
			"Keep responses casual and natural. Never use quotation marks.",
		Summary: `Based on these recent tweets:

%s

Create a casual observation about trends or patterns you notice. The tweet should:
1. Be casual and conversational (like texting a friend)
2. Use lowercase (like casual texting)
3. Keep it under 200 chars
4. NO hashtags, NO emojis, NO quotation marks
5. Focus on insights, not just listing what happened
6. Sound natural, not like a formal summary

Example good tweet: been noticing how much a single strong coin can influence the whole market
Example bad tweet: "Analysis of recent market trends shows significant correlation between assets"

IMPORTANT: Never use quotation marks in the tweet.`,

		SubScoreSystem: "You are an expert at evaluating tweets. " +
			"Return ONLY a numeric score from 0 to 100, nothing else.",
		SubScore: "Rate this tweet from 0 to 100 for %s.\n\nTweet: %s",
		Criteria: map[string]string{
			"originality":    "uniqueness of perspective",
			"depth":          "depth of analysis",
			"call_to_action": "strength of its call to action",
			"humor":          "humor and wit",
		},

		TopicsSystem: `You are an expert at identifying specific topics in tweets.
Extract 1-3 main topics. Topics MUST be:
- Single word only
- Extremely specific (no vague terms like 'technology', 'business', 'industry')
- Lowercase with no special characters

Return ONLY a comma-separated list of topics, no other text.
Example: "crypto, ai, nft"

If no specific topics can be identified, return an empty string.`,

		TokensSystem: `You are an expert at identifying crypto token names and symbols in tweets.
Extract all token names and $symbols. Rules:
1. Include both explicit symbols (starting with $) and token names
2. Remove any $ prefix
3. Convert all to uppercase
4. Return ONLY the unique token list, no other text
5. If unsure about a token, don't include it

Example tweet: "Just bought some $eth and bitcoin, thinking about Solana too"
Example response: ETH, BTC, SOL

Return ONLY a comma-separated list of tokens, no other text.
If no tokens found, return an empty string.`,
	}
}

// LoadPrompts reads a YAML prompts file and overlays it on the defaults.
func LoadPrompts(path string) (*Prompts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	prompts := DefaultPrompts()
	if err := yaml.Unmarshal(data, prompts); err != nil {
		return nil, fmt.Errorf("failed to parse prompts YAML: %w", err)
	}
	return prompts, nil
}
