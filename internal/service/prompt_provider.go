package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"go.uber.org/zap"

	"bedtime-server/internal/model"
)

var ErrPromptNotFoundInCache = errors.New("prompt not found in cache")

// PromptRepository загружает шаблоны промтов из хранилища.
type PromptRepository interface {
	GetAll(ctx context.Context) ([]model.PromptTemplate, error)
}

// PromptProvider provides access to prompt templates, caching them locally.
// It implements the prompt rendering used by the generation workflow.
type PromptProvider struct {
	repo      PromptRepository
	cacheLock sync.RWMutex
	cacheMap  map[string]map[string]string // Cache: map[language]map[key]content
	logger    *zap.Logger
}

// NewPromptProvider creates a new PromptProvider.
func NewPromptProvider(repo PromptRepository, logger *zap.Logger) *PromptProvider {
	if repo == nil {
		log.Fatal().Msg("PromptRepository is nil for PromptProvider")
	}
	if logger == nil {
		log.Fatal().Msg("Logger is nil for PromptProvider")
	}
	return &PromptProvider{
		repo:     repo,
		cacheMap: make(map[string]map[string]string),
		logger:   logger.Named("PromptProvider"),
	}
}

// LoadInitialPrompts loads all prompt templates from the database into the
// cache. This should be called once at startup.
func (p *PromptProvider) LoadInitialPrompts(ctx context.Context) error {
	p.logger.Info("Loading initial prompts into cache...")
	prompts, err := p.repo.GetAll(ctx)
	if err != nil {
		p.logger.Error("Failed to get all prompts from repository", zap.Error(err))
		return fmt.Errorf("failed to get all prompts from repository: %w", err)
	}

	newCache := make(map[string]map[string]string)
	count := 0
	for _, prompt := range prompts {
		if _, ok := newCache[prompt.Language]; !ok {
			newCache[prompt.Language] = make(map[string]string)
		}
		newCache[prompt.Language][prompt.Key] = prompt.Content
		count++
	}

	p.cacheLock.Lock()
	p.cacheMap = newCache
	p.cacheLock.Unlock()

	p.logger.Info("Initial prompts loaded successfully into cache", zap.Int("count", count))
	return nil
}

// GetPrompt retrieves a prompt template from the cache by key and language.
// If the prompt is not found for the requested language, it falls back to
// English ('en').
func (p *PromptProvider) GetPrompt(_ context.Context, key string, language string) (string, error) {
	const fallbackLanguage = "en"

	p.cacheLock.RLock()
	langCache, langOk := p.cacheMap[language]
	var content string
	var keyOk bool
	if langOk {
		content, keyOk = langCache[key]
	}
	p.cacheLock.RUnlock()

	if (!langOk || !keyOk) && language != fallbackLanguage {
		p.logger.Warn("Prompt not found in requested language, trying fallback",
			zap.String("key", key),
			zap.String("requested_language", language),
			zap.String("fallback_language", fallbackLanguage))

		p.cacheLock.RLock()
		langCache, langOk = p.cacheMap[fallbackLanguage]
		if langOk {
			content, keyOk = langCache[key]
		}
		p.cacheLock.RUnlock()
	}

	if !langOk || !keyOk {
		p.logger.Error("Prompt not found in cache, including fallback",
			zap.String("key", key), zap.String("requested_language", language))
		return "", fmt.Errorf("%w: key='%s', lang='%s'", ErrPromptNotFoundInCache, key, language)
	}

	return content, nil
}

// RenderStoryPrompt renders the system/user prompt pair for one story request.
// The template key is selected by story type; every placeholder is replaced
// with the corresponding request parameter.
func (p *PromptProvider) RenderStoryPrompt(ctx context.Context, params model.StoryParameters) (string, string, error) {
	systemTpl, err := p.GetPrompt(ctx, model.PromptKeyStorySystem, params.Language)
	if err != nil {
		return "", "", err
	}

	userKey := userPromptKey(params)
	userTpl, err := p.GetPrompt(ctx, userKey, params.Language)
	if err != nil {
		return "", "", err
	}

	repl := placeholderReplacer(params)
	return repl.Replace(systemTpl), repl.Replace(userTpl), nil
}

// userPromptKey выбирает шаблон пользовательского промта: продолжение истории
// имеет собственный шаблон независимо от типа.
func userPromptKey(params model.StoryParameters) string {
	if params.ParentStoryID != nil {
		return model.PromptKeyContinuation
	}
	switch params.StoryType {
	case model.StoryTypeHero:
		return model.PromptKeyStoryHero
	case model.StoryTypeCombined:
		return model.PromptKeyStoryCombined
	default:
		return model.PromptKeyStoryChild
	}
}

func placeholderReplacer(params model.StoryParameters) *strings.Replacer {
	childName := ""
	childInterests := ""
	if params.Child != nil {
		childName = params.Child.Name
		childInterests = strings.Join(params.Child.Interests, ", ")
	}
	heroName := ""
	heroDescription := ""
	heroTraits := ""
	if params.Hero != nil {
		heroName = params.Hero.Name
		heroDescription = params.Hero.Description
		heroTraits = strings.Join(params.Hero.Traits, ", ")
	}

	return strings.NewReplacer(
		"{{LANGUAGE}}", params.Language,
		"{{AGE}}", strconv.Itoa(params.ChildAge()),
		"{{MORAL}}", params.Moral,
		"{{WORD_COUNT}}", strconv.Itoa(params.TargetWordCount()),
		"{{DURATION_MINUTES}}", strconv.Itoa(params.DurationMinutes),
		"{{THEME_HINT}}", params.ThemeHint,
		"{{CHILD_NAME}}", childName,
		"{{CHILD_INTERESTS}}", childInterests,
		"{{HERO_NAME}}", heroName,
		"{{HERO_DESCRIPTION}}", heroDescription,
		"{{HERO_TRAITS}}", heroTraits,
		"{{PARENT_SUMMARY}}", params.ParentSummary,
	)
}
