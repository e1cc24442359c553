package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"bedtime-server/internal/model"
	"bedtime-server/internal/service"
)

// StoryHandler - HTTP-слой сервиса историй.
type StoryHandler struct {
	stories  *service.StoryService
	profiles *service.ProfileService
	logger   *zap.Logger
}

// NewStoryHandler создает HTTP-обработчики историй и профилей.
func NewStoryHandler(stories *service.StoryService, profiles *service.ProfileService, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{
		stories:  stories,
		profiles: profiles,
		logger:   logger.Named("StoryHandler"),
	}
}

// RegisterRoutes регистрирует маршруты API под JWT-аутентификацией.
func (h *StoryHandler) RegisterRoutes(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	api := router.Group("/api")
	api.Use(authMiddleware)
	{
		api.POST("/stories", h.createStory)
		api.GET("/stories", h.listStories)
		api.GET("/stories/:story_id", h.getStory)

		api.POST("/profiles/children", h.createChildProfile)
		api.GET("/profiles/children", h.listChildProfiles)
		api.POST("/profiles/heroes", h.createHeroProfile)
		api.GET("/profiles/heroes", h.listHeroProfiles)
	}
}

func (h *StoryHandler) createStory(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, model.ErrUnauthorized)
		return
	}

	var req service.CreateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Code:    ErrCodeValidation,
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	story, err := h.stories.CreateStory(c.Request.Context(), userID, req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, story)
}

func (h *StoryHandler) getStory(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, model.ErrUnauthorized)
		return
	}

	storyID, err := uuid.Parse(c.Param("story_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Code:    ErrCodeValidation,
			Message: "story_id must be a valid UUID",
		})
		return
	}

	story, err := h.stories.GetStory(c.Request.Context(), userID, storyID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, story)
}

func (h *StoryHandler) listStories(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, model.ErrUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	stories, err := h.stories.ListStories(c.Request.Context(), userID, limit, offset)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stories": stories, "limit": limit, "offset": offset})
}

type createChildProfileRequest struct {
	Name      string   `json:"name" binding:"required"`
	Age       int      `json:"age" binding:"required"`
	Gender    string   `json:"gender,omitempty"`
	Interests []string `json:"interests,omitempty"`
}

func (h *StoryHandler) createChildProfile(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, model.ErrUnauthorized)
		return
	}

	var req createChildProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Code:    ErrCodeValidation,
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	profile, err := h.profiles.CreateChildProfile(c.Request.Context(), userID, req.Name, req.Age, req.Gender, req.Interests)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, profile)
}

func (h *StoryHandler) listChildProfiles(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, model.ErrUnauthorized)
		return
	}

	profiles, err := h.profiles.ListChildProfiles(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

type createHeroProfileRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description,omitempty"`
	Traits      []string `json:"traits,omitempty"`
}

func (h *StoryHandler) createHeroProfile(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, model.ErrUnauthorized)
		return
	}

	var req createHeroProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Code:    ErrCodeValidation,
			Message: "Invalid request body: " + err.Error(),
		})
		return
	}

	profile, err := h.profiles.CreateHeroProfile(c.Request.Context(), userID, req.Name, req.Description, req.Traits)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, profile)
}

func (h *StoryHandler) listHeroProfiles(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		handleServiceError(c, model.ErrUnauthorized)
		return
	}

	profiles, err := h.profiles.ListHeroProfiles(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}
