package ai

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Системный промт для генерации начала истории.
const startSystemPrompt = `You are an AI storyteller that creates engaging short stories.

Generate a short story beginning based on the user's prompt.

Your story should be engaging, descriptive, and set the scene for an adventure.
Keep it under 200 words.

At the end, generate exactly 3 possible choices for how the story could continue.
Make the choices interesting and divergent to give the story different possible paths.

Your response should be in JSON format with these fields:
- title: A catchy title for the story
- content: The story text
- choices: An array of 3 choices to continue the story`

// Системный промт для генерации продолжения истории.
const continueSystemPrompt = `You are an AI storyteller that continues an ongoing story.

The user will provide the previous part of the story and the choice they made.

Continue the story based on their choice. Make it engaging and descriptive.
Keep it under 400 words.

At the end, generate exactly 3 possible choices for how the story could continue,
unless it's a logical endpoint to the story, then you can provide fewer choices
or end the story.

Your response should be in JSON format with these fields:
- content: The continuation text
- choices: An array of choices to continue the story (or an empty array if the story ends)`

// Storyteller превращает промты пользователя в структурированные куски
// повествования, считая провайдера ненадежным источником текста:
// сбой разбора никогда не всплывает наружу, только сбой самого вызова.
type Storyteller struct {
	client Client
	logger *zap.Logger
}

// NewStoryteller создает Storyteller поверх переданного AI клиента.
func NewStoryteller(client Client, logger *zap.Logger) *Storyteller {
	return &Storyteller{
		client: client,
		logger: logger.Named("Storyteller"),
	}
}

// StartStory генерирует начало истории по промту пользователя.
func (s *Storyteller) StartStory(ctx context.Context, prompt string) (*StoryStart, error) {
	raw, err := s.client.GenerateText(ctx, startSystemPrompt, prompt)
	if err != nil {
		s.logger.Error("Не удалось сгенерировать начало истории", zap.Error(err))
		return nil, fmt.Errorf("failed to generate story start: %w", err)
	}

	result := ParseStoryStart(raw)
	s.logger.Info("Начало истории сгенерировано",
		zap.String("title", result.Title),
		zap.Int("contentLength", len(result.Content)),
		zap.Int("choices", len(result.Choices)),
	)
	return &result, nil
}

// ContinueStory генерирует продолжение по предыдущему содержимому и выбору.
func (s *Storyteller) ContinueStory(ctx context.Context, previousContent, choice string) (*Continuation, error) {
	userInput := fmt.Sprintf("Previous story: %s\n\nChosen path: %s", previousContent, choice)

	raw, err := s.client.GenerateText(ctx, continueSystemPrompt, userInput)
	if err != nil {
		s.logger.Error("Не удалось сгенерировать продолжение истории", zap.Error(err))
		return nil, fmt.Errorf("failed to continue story: %w", err)
	}

	result := ParseContinuation(raw)
	s.logger.Info("Продолжение истории сгенерировано",
		zap.Int("contentLength", len(result.Content)),
		zap.Int("choices", len(result.Choices)),
	)
	return &result, nil
}
