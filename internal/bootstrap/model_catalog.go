package bootstrap

import (
	"context"
	"strings"

	"github.com/samber/lo"

	"transcriber-desk/internal/domain"
)

var modelCatalog = []domain.ModelOption{
	{
		ID:          "tiny",
		Name:        "Tiny",
		SizeLabel:   "~75 MB",
		Description: "Fastest, lowest accuracy.",
	},
	{
		ID:          "base",
		Name:        "Base",
		SizeLabel:   "~142 MB",
		Description: "Balanced speed and quality.",
	},
	{
		ID:          "small",
		Name:        "Small",
		SizeLabel:   "~466 MB",
		Description: "Higher quality, slower on CPU.",
	},
	{
		ID:          "medium",
		Name:        "Medium",
		SizeLabel:   "~1.5 GB",
		Description: "High quality, GPU recommended.",
	},
	{
		ID:          "large",
		Name:        "Large",
		SizeLabel:   "~2.9 GB",
		Description: "Best quality, GPU required in practice.",
	},
}

// GetModels returns the cached model options for the selector.
func (a *App) GetModels() []domain.ModelOption {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.models) == 0 {
		return catalogCopy()
	}
	return append([]domain.ModelOption(nil), a.models...)
}

// RefreshModels asks the service for its models and falls back to the
// built-in catalog when the list is unavailable or empty.
func (a *App) RefreshModels(ctx context.Context) []domain.ModelOption {
	ids, err := a.backend.Models(ctx)
	if err != nil {
		a.logger.Warn("load models failed, using built-in catalog", "err", err)
	}

	models := resolveModelOptions(ids)
	a.mu.Lock()
	a.models = models
	a.mu.Unlock()
	return append([]domain.ModelOption(nil), models...)
}

// resolveModelOptions maps service model IDs onto catalog entries. Unknown
// IDs are kept with the ID as display name.
func resolveModelOptions(ids []string) []domain.ModelOption {
	ids = lo.Uniq(lo.Compact(lo.Map(ids, func(id string, _ int) string {
		return strings.TrimSpace(id)
	})))
	if len(ids) == 0 {
		return catalogCopy()
	}

	return lo.Map(ids, func(id string, _ int) domain.ModelOption {
		if model, found := getModelByID(id); found {
			return model
		}
		return domain.ModelOption{ID: id, Name: id}
	})
}

func getModelByID(id string) (domain.ModelOption, bool) {
	return lo.Find(modelCatalog, func(model domain.ModelOption) bool {
		return model.ID == id
	})
}

func catalogCopy() []domain.ModelOption {
	models := make([]domain.ModelOption, len(modelCatalog))
	copy(models, modelCatalog)
	return models
}
