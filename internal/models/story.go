package models

import (
	"time"

	"github.com/google/uuid"
)

// PreviewLength - сколько символов первого сегмента попадает в превью истории.
const PreviewLength = 150

// Story represents one interactive story owned by a user.
// SegmentCount всегда равен числу сохраненных сегментов этой истории;
// ShareID установлен тогда и только тогда, когда IsPublic == true.
type Story struct {
	ID            uuid.UUID `db:"id" json:"id"`
	UserID        uuid.UUID `db:"user_id" json:"userId"`
	Title         string    `db:"title" json:"title"`
	InitialPrompt string    `db:"initial_prompt" json:"initialPrompt"`
	Preview       string    `db:"preview" json:"preview"`
	SegmentCount  int       `db:"segment_count" json:"segmentCount"`
	IsPublic      bool      `db:"is_public" json:"isPublic"`
	ShareID       *string   `db:"share_id" json:"shareId,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// StorySegment is one generated unit of narrative within a story.
// Первый сегмент имеет Sequence == 1 и пустые ParentSegmentID/ChoiceMade.
// Пустой Choices означает, что история дошла до развязки.
type StorySegment struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	StoryID         uuid.UUID  `db:"story_id" json:"storyId"`
	Content         string     `db:"content" json:"content"`
	Prompt          string     `db:"prompt" json:"prompt"`
	Choices         []string   `db:"choices" json:"choices"`
	ParentSegmentID *uuid.UUID `db:"parent_segment_id" json:"parentSegmentId,omitempty"`
	ChoiceMade      *string    `db:"choice_made" json:"choiceMade,omitempty"`
	Sequence        int        `db:"sequence" json:"sequence"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
}

// MakePreview строит денормализованное превью истории из текста первого сегмента.
func MakePreview(content string) string {
	runes := []rune(content)
	if len(runes) <= PreviewLength {
		return content
	}
	return string(runes[:PreviewLength]) + "..."
}
