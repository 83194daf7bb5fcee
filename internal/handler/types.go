package handler

import (
	"time"

	"tale-server/internal/models"
	"tale-server/internal/service"
)

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type updateUserRequest struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

type meResponse struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	StoryCount int64     `json:"storyCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

type generateStoryRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

type continueStoryRequest struct {
	Choice string `json:"choice" binding:"required"`
}

type saveStoryRequest struct {
	Title    string                 `json:"title"`
	Preview  string                 `json:"preview"`
	Segments []service.SegmentInput `json:"segments"`
}

type generateStoryResponse struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Choices []string `json:"choices"`
}

type continueStoryResponse struct {
	ID      string   `json:"id"`
	Content string   `json:"content"`
	Choices []string `json:"choices"`
}

type storySummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Preview      string    `json:"preview"`
	SegmentCount int       `json:"segmentCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type storyListResponse struct {
	Count int            `json:"count"`
	Data  []storySummary `json:"data"`
}

type segmentView struct {
	ID         string   `json:"id"`
	Content    string   `json:"content"`
	Prompt     string   `json:"prompt"`
	Choices    []string `json:"choices"`
	ChoiceMade *string  `json:"choiceMade,omitempty"`
	Sequence   int      `json:"sequence"`
}

type storyDetailResponse struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	InitialPrompt string        `json:"initialPrompt"`
	Preview       string        `json:"preview"`
	SegmentCount  int           `json:"segmentCount"`
	IsPublic      bool          `json:"isPublic"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	Segments      []segmentView `json:"segments"`
}

type shareStoryResponse struct {
	ShareURL string `json:"shareUrl"`
}

func toStorySummary(story *models.Story) storySummary {
	return storySummary{
		ID:           story.ID.String(),
		Title:        story.Title,
		Preview:      story.Preview,
		SegmentCount: story.SegmentCount,
		CreatedAt:    story.CreatedAt,
		UpdatedAt:    story.UpdatedAt,
	}
}

func toStoryDetail(story *models.Story, segments []*models.StorySegment) storyDetailResponse {
	views := make([]segmentView, 0, len(segments))
	for _, segment := range segments {
		choices := segment.Choices
		if choices == nil {
			choices = []string{}
		}
		views = append(views, segmentView{
			ID:         segment.ID.String(),
			Content:    segment.Content,
			Prompt:     segment.Prompt,
			Choices:    choices,
			ChoiceMade: segment.ChoiceMade,
			Sequence:   segment.Sequence,
		})
	}
	return storyDetailResponse{
		ID:            story.ID.String(),
		Title:         story.Title,
		InitialPrompt: story.InitialPrompt,
		Preview:       story.Preview,
		SegmentCount:  story.SegmentCount,
		IsPublic:      story.IsPublic,
		CreatedAt:     story.CreatedAt,
		UpdatedAt:     story.UpdatedAt,
		Segments:      views,
	}
}
