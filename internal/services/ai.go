package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const suggestSystemPrompt = `You turn meeting notes and messages into tasks for a small team's board.
Reply with a JSON object {"tasks": [{"title": "...", "description": "..."}]}.
Titles are short and imperative. Descriptions are one or two sentences.
Use an empty array when the text contains no actionable work.`

// AIService drafts tasks with an OpenAI chat model.
type AIService struct {
	client *openai.Client
	model  string
}

// SuggestedTask is one draft returned by the model.
type SuggestedTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func NewAIService(apiKey string) *AIService {
	return &AIService{
		client: openai.NewClient(apiKey),
		model:  openai.GPT4o,
	}
}

// SuggestTasks asks the model for task drafts found in text
func (s *AIService) SuggestTasks(ctx context.Context, text string) ([]SuggestedTask, error) {
	if s.client == nil {
		return nil, errors.New("openai client not initialized")
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: suggestSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai returned no choices")
	}

	return parseSuggestions(resp.Choices[0].Message.Content)
}

// parseSuggestions accepts {"tasks": [...]} or a bare array, optionally
// wrapped in a markdown code fence.
func parseSuggestions(content string) ([]SuggestedTask, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	if strings.HasPrefix(content, "[") {
		var tasks []SuggestedTask
		if err := json.Unmarshal([]byte(content), &tasks); err != nil {
			return nil, fmt.Errorf("failed to parse AI response: %w", err)
		}
		return tasks, nil
	}

	var wrapped struct {
		Tasks []SuggestedTask `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(content), &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}
	return wrapped.Tasks, nil
}
