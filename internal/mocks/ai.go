package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"tale-server/internal/ai"
)

// Mock ai.Client
type AIClient struct {
	mock.Mock
}

func (m *AIClient) GenerateText(ctx context.Context, systemPrompt string, userInput string) (string, error) {
	args := m.Called(ctx, systemPrompt, userInput)
	return args.String(0), args.Error(1)
}

// Mock service.Narrator
type Narrator struct {
	mock.Mock
}

func (m *Narrator) StartStory(ctx context.Context, prompt string) (*ai.StoryStart, error) {
	args := m.Called(ctx, prompt)
	start, _ := args.Get(0).(*ai.StoryStart)
	return start, args.Error(1)
}

func (m *Narrator) ContinueStory(ctx context.Context, previousContent, choice string) (*ai.Continuation, error) {
	args := m.Called(ctx, previousContent, choice)
	cont, _ := args.Get(0).(*ai.Continuation)
	return cont, args.Error(1)
}
