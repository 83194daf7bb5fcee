package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tale-server/internal/models"
)

// parseStoryID достает и валидирует :id из пути.
func parseStoryID(c *gin.Context) (uuid.UUID, bool) {
	storyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid story ID"})
		return uuid.Nil, false
	}
	return storyID, true
}

func (h *Handler) generateStory(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	var req generateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Prompt is required"})
		return
	}
	if len(req.Prompt) > maxPromptLength {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Prompt is too long"})
		return
	}

	story, segment, err := h.storyService.GenerateStory(c.Request.Context(), userID, req.Prompt)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	storiesGeneratedTotal.Inc()
	h.logger.Info("story generated",
		zap.String("storyID", story.ID.String()),
		zap.String("userID", userID.String()))

	choices := segment.Choices
	if choices == nil {
		choices = []string{}
	}
	c.JSON(http.StatusCreated, generateStoryResponse{
		ID:      story.ID.String(),
		Title:   story.Title,
		Content: segment.Content,
		Choices: choices,
	})
}

func (h *Handler) continueStory(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	storyID, ok := parseStoryID(c)
	if !ok {
		return
	}

	var req continueStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Choice is required"})
		return
	}

	segment, err := h.storyService.ContinueStory(c.Request.Context(), userID, storyID, req.Choice)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	storyContinuationsTotal.Inc()

	choices := segment.Choices
	if choices == nil {
		choices = []string{}
	}
	c.JSON(http.StatusOK, continueStoryResponse{
		ID:      storyID.String(),
		Content: segment.Content,
		Choices: choices,
	})
}

func (h *Handler) listStories(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	stories, err := h.storyService.ListStories(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	data := make([]storySummary, 0, len(stories))
	for _, story := range stories {
		data = append(data, toStorySummary(story))
	}
	c.JSON(http.StatusOK, storyListResponse{
		Count: len(data),
		Data:  data,
	})
}

func (h *Handler) getStory(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	storyID, ok := parseStoryID(c)
	if !ok {
		return
	}

	story, segments, err := h.storyService.GetStory(c.Request.Context(), userID, storyID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toStoryDetail(story, segments))
}

func (h *Handler) saveStory(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	storyID, ok := parseStoryID(c)
	if !ok {
		return
	}

	var req saveStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Title is required"})
		return
	}

	story, segments, err := h.storyService.SaveStory(c.Request.Context(), userID, storyID, req.Title, req.Preview, req.Segments)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	h.logger.Info("story saved",
		zap.String("storyID", storyID.String()),
		zap.Int("segments", len(segments)))

	c.JSON(http.StatusOK, toStoryDetail(story, segments))
}

func (h *Handler) shareStory(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	storyID, ok := parseStoryID(c)
	if !ok {
		return
	}

	shareURL, err := h.storyService.ShareStory(c.Request.Context(), userID, storyID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	storySharesTotal.Inc()

	c.JSON(http.StatusOK, shareStoryResponse{ShareURL: shareURL})
}

func (h *Handler) getSharedStory(c *gin.Context) {
	shareID := c.Param("shareId")
	if shareID == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid share ID"})
		return
	}

	story, segments, err := h.storyService.GetSharedStory(c.Request.Context(), shareID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, toStoryDetail(story, segments))
}

func (h *Handler) deleteStory(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}
	storyID, ok := parseStoryID(c)
	if !ok {
		return
	}

	if err := h.storyService.DeleteStory(c.Request.Context(), userID, storyID); err != nil {
		handleServiceError(c, err)
		return
	}
	h.logger.Info("story deleted", zap.String("storyID", storyID.String()))

	c.JSON(http.StatusOK, gin.H{"message": "Story deleted"})
}
