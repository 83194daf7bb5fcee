package ai

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Значения по умолчанию, которыми закрывается цепочка разбора.
const (
	DefaultTitle               = "Untitled Story"
	DefaultStartContent        = "Once upon a time..."
	DefaultContinuationContent = "The story continues..."
)

// DefaultChoices возвращает стандартный набор вариантов продолжения.
func DefaultChoices() []string {
	return []string{"Continue the adventure", "Take a different path", "End the story"}
}

// StoryStart - структурированный результат генерации начала истории.
type StoryStart struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Choices []string `json:"choices"`
}

// Continuation - структурированный результат генерации продолжения.
// Пустой Choices - осмысленное терминальное состояние, история закончилась.
type Continuation struct {
	Content string   `json:"content"`
	Choices []string `json:"choices"`
}

var (
	titleRegex   = regexp.MustCompile(`title["']?:\s*["']([^"']+)["']`)
	contentRegex = regexp.MustCompile(`content["']?:\s*["']([^"']+)["']`)
	choicesRegex = regexp.MustCompile(`(?s)choices["']?:\s*\[(.*?)\]`)
)

// ParseStoryStart разбирает сырой ответ провайдера в StoryStart.
// Цепочка стратегий: строгий JSON -> извлечение регулярками -> значения
// по умолчанию. Функция тотальна - на любом входе возвращает пригодный
// результат с непустыми Title, Content и Choices.
func ParseStoryStart(raw string) StoryStart {
	var result StoryStart
	cleaned := cleanAIResponse(raw)

	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		// Провайдер не обязан отдавать корректный JSON, пробуем регулярки
		result = StoryStart{
			Title:   extractField(titleRegex, raw),
			Content: extractField(contentRegex, raw),
			Choices: extractChoices(raw),
		}
		if result.Content == "" {
			// Контент без совпадений - отдаем сырой текст как есть
			result.Content = strings.TrimSpace(raw)
		}
	}

	if result.Title == "" {
		result.Title = DefaultTitle
	}
	if result.Content == "" {
		result.Content = DefaultStartContent
	}
	if result.Choices == nil {
		result.Choices = DefaultChoices()
	}
	return result
}

// ParseContinuation разбирает сырой ответ провайдера в Continuation.
// Та же цепочка, что и у ParseStoryStart, но явный пустой массив choices
// в корректном JSON сохраняется - это конец истории, а не сбой разбора.
func ParseContinuation(raw string) Continuation {
	var result Continuation
	cleaned := cleanAIResponse(raw)

	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		result = Continuation{
			Content: extractField(contentRegex, raw),
			Choices: extractChoices(raw),
		}
		if result.Content == "" {
			result.Content = strings.TrimSpace(raw)
		}
	}

	if result.Content == "" {
		result.Content = DefaultContinuationContent
	}
	if result.Choices == nil {
		result.Choices = DefaultChoices()
	}
	return result
}

// cleanAIResponse очищает ответ от AI от markdown-разметки и исправляет
// баланс скобок в конце JSON.
func cleanAIResponse(response string) string {
	cleaned := strings.TrimSpace(response)

	// Удаляем markdown-разметку
	cleaned = strings.TrimPrefix(cleaned, "```json\n")
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "\n```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	// Дописываем незакрытые скобки в конце
	openCurly := strings.Count(cleaned, "{")
	closeCurly := strings.Count(cleaned, "}")
	if openCurly > closeCurly {
		cleaned += strings.Repeat("}", openCurly-closeCurly)
	}

	return cleaned
}

// extractField возвращает первую подгруппу совпадения или пустую строку.
func extractField(re *regexp.Regexp, raw string) string {
	match := re.FindStringSubmatch(raw)
	if len(match) < 2 {
		return ""
	}
	return strings.TrimSpace(match[1])
}

// extractChoices вытаскивает литерал массива choices и разбивает его по запятым.
// Возвращает nil, если массив не найден или в нем нет непустых элементов.
func extractChoices(raw string) []string {
	match := choicesRegex.FindStringSubmatch(raw)
	if len(match) < 2 {
		return nil
	}

	var choices []string
	for _, part := range strings.Split(match[1], ",") {
		choice := strings.Trim(strings.TrimSpace(part), `"'`)
		if choice != "" {
			choices = append(choices, choice)
		}
	}
	return choices
}
