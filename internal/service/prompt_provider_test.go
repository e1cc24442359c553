package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bedtime-server/internal/model"
	"bedtime-server/internal/service"
)

type staticPromptRepo struct {
	prompts []model.PromptTemplate
}

func (r *staticPromptRepo) GetAll(_ context.Context) ([]model.PromptTemplate, error) {
	return r.prompts, nil
}

func newLoadedProvider(t *testing.T, prompts []model.PromptTemplate) *service.PromptProvider {
	t.Helper()
	provider := service.NewPromptProvider(&staticPromptRepo{prompts: prompts}, zap.NewNop())
	require.NoError(t, provider.LoadInitialPrompts(context.Background()))
	return provider
}

func TestPromptProvider_GetPrompt_FallsBackToEnglish(t *testing.T) {
	provider := newLoadedProvider(t, []model.PromptTemplate{
		{Key: model.PromptKeyStorySystem, Language: "en", Content: "english system prompt"},
		{Key: model.PromptKeyStorySystem, Language: "de", Content: "deutscher Systemprompt"},
	})

	content, err := provider.GetPrompt(context.Background(), model.PromptKeyStorySystem, "de")
	require.NoError(t, err)
	require.Equal(t, "deutscher Systemprompt", content)

	// Для французского шаблона нет, должен вернуться английский
	content, err = provider.GetPrompt(context.Background(), model.PromptKeyStorySystem, "fr")
	require.NoError(t, err)
	require.Equal(t, "english system prompt", content)

	_, err = provider.GetPrompt(context.Background(), "missing_key", "fr")
	require.ErrorIs(t, err, service.ErrPromptNotFoundInCache)
}

func TestPromptProvider_RenderStoryPrompt_ReplacesPlaceholders(t *testing.T) {
	provider := newLoadedProvider(t, []model.PromptTemplate{
		{Key: model.PromptKeyStorySystem, Language: "en", Content: "Write in {{LANGUAGE}} for a {{AGE}} year old."},
		{Key: model.PromptKeyStoryChild, Language: "en", Content: "A story about {{CHILD_NAME}} who loves {{CHILD_INTERESTS}}. Moral: {{MORAL}}. About {{WORD_COUNT}} words."},
	})

	params := model.StoryParameters{
		StoryType:       model.StoryTypeChild,
		Language:        "en",
		Moral:           "kindness",
		DurationMinutes: 5,
		Child:           &model.ChildProfile{Name: "Mia", Age: 6, Interests: []string{"space", "animals"}},
	}

	systemPrompt, userPrompt, err := provider.RenderStoryPrompt(context.Background(), params)
	require.NoError(t, err)
	require.Equal(t, "Write in en for a 6 year old.", systemPrompt)
	require.Equal(t, "A story about Mia who loves space, animals. Moral: kindness. About 700 words.", userPrompt)
}

func TestPromptProvider_RenderStoryPrompt_ContinuationUsesOwnTemplate(t *testing.T) {
	provider := newLoadedProvider(t, []model.PromptTemplate{
		{Key: model.PromptKeyStorySystem, Language: "en", Content: "system"},
		{Key: model.PromptKeyStoryChild, Language: "en", Content: "child template"},
		{Key: model.PromptKeyContinuation, Language: "en", Content: "Continue the story: {{PARENT_SUMMARY}}"},
	})

	parentID := uuid.New()
	params := model.StoryParameters{
		StoryType:       model.StoryTypeChild,
		Language:        "en",
		DurationMinutes: 5,
		ParentStoryID:   &parentID,
		ParentSummary:   "Mia helped a lost star.",
		Child:           &model.ChildProfile{Name: "Mia", Age: 6},
	}

	_, userPrompt, err := provider.RenderStoryPrompt(context.Background(), params)
	require.NoError(t, err)
	require.Equal(t, "Continue the story: Mia helped a lost star.", userPrompt)
}
