package core

import (
	"context"
	"fmt"

	"ayurgenix/internal/dataset"
	"ayurgenix/internal/llm"
	"ayurgenix/pkg"
)

// HistoryTurns is how many of the most recent conversation turns accompany
// each generation call.
const HistoryTurns = 6

// ChatService orchestrates the consultation between a user and the
// assistant.  It matches each question against the condition table and
// hands the matched rows, the profile and recent history to the LLM.
type ChatService struct {
	LLM     llm.Client
	Dataset *dataset.Dataset
}

// NewChatService constructs a ChatService.  ds may be empty; answers are then
// generated without database context.
func NewChatService(client llm.Client, ds *dataset.Dataset) *ChatService {
	return &ChatService{LLM: client, Dataset: ds}
}

// Answer is the outcome of one consultation turn.
type Answer struct {
	Reply   string
	Matches []dataset.Record
}

// Greet asks the LLM to welcome the user and ask about their problem,
// without giving advice.  On error FallbackReply is returned with the error.
func (s *ChatService) Greet(ctx context.Context, p pkg.Profile) (string, error) {
	prompt := fmt.Sprintf(greetingTemplate, p.Name, p.Age, p.Gender, p.Dosha, p.Stress, p.Conditions, p.Medications)
	return s.generate(ctx, nil, prompt)
}

// Reply answers one user question.  history is the conversation so far,
// including the question itself as its last turn.  This is a blocking call
// that delegates to the LLM; on error FallbackReply is returned with the
// error so the caller can still store a reply.
func (s *ChatService) Reply(ctx context.Context, p pkg.Profile, history []pkg.Message, question string) (Answer, error) {
	matches := Match(s.Dataset, question)
	prompt := consultationPrompt(p, FormatContext(matches), question)
	reply, err := s.generate(ctx, history, prompt)
	return Answer{Reply: reply, Matches: matches}, err
}

func (s *ChatService) generate(ctx context.Context, history []pkg.Message, prompt string) (string, error) {
	if s.LLM == nil {
		return FallbackReply, llm.ErrNotConfigured
	}
	resp, err := s.LLM.Chat(ctx, chatMessages(history, prompt))
	if err != nil {
		return FallbackReply, err
	}
	return resp, nil
}

// chatMessages lays out the system prompt, the last HistoryTurns turns and
// the new prompt.
func chatMessages(history []pkg.Message, prompt string) []llm.Message {
	if len(history) > HistoryTurns {
		history = history[len(history)-HistoryTurns:]
	}
	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: "system", Content: SystemPrompt})
	for _, m := range history {
		role := "assistant"
		if m.Role == pkg.RoleUser {
			role = "user"
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Content})
	}
	return append(msgs, llm.Message{Role: "user", Content: prompt})
}

func consultationPrompt(p pkg.Profile, database, question string) string {
	return fmt.Sprintf(consultationTemplate, p.Name, p.Age, p.Dosha, p.Stress, p.Conditions, p.Medications, database, question)
}
