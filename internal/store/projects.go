// internal/store/projects.go
package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/xeipuuv/gojsonschema"

	"casai-client/internal/common/errors"
	"casai-client/internal/common/logger"
	"casai-client/internal/models"
)

// Projects holds saved full designs. Saving is a user-intent action, not a
// set union: the store never deduplicates, callers check FindByImage first
// when they want "already saved" semantics.
type Projects struct {
	rdb    *redis.Client
	schema *gojsonschema.Schema
	logger logger.Logger
}

// Save always appends and returns the project id, assigning one when the
// caller left it empty. The collection length strictly increases by one per
// call regardless of content duplication.
func (p *Projects) Save(ctx context.Context, project models.SavedProject) (string, error) {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	if project.Recommendations == nil {
		project.Recommendations = []models.Recommendation{}
	}

	err := p.rdb.Watch(ctx, func(tx *redis.Tx) error {
		items, err := p.load(ctx, tx)
		if err != nil {
			return err
		}
		return p.write(ctx, tx, append(items, project))
	}, projectsKey)
	if err != nil {
		return "", errors.NewPersistenceFailedError("projects", err)
	}

	p.logger.Info("project saved", map[string]interface{}{
		"id":   project.ID,
		"date": project.Date,
	})
	return project.ID, nil
}

// Remove deletes a project by id. Removing an absent id is a no-op.
func (p *Projects) Remove(ctx context.Context, id string) error {
	err := p.rdb.Watch(ctx, func(tx *redis.Tx) error {
		items, err := p.load(ctx, tx)
		if err != nil {
			return err
		}
		next := make([]models.SavedProject, 0, len(items))
		for _, item := range items {
			if item.ID != id {
				next = append(next, item)
			}
		}
		return p.write(ctx, tx, next)
	}, projectsKey)
	if err != nil {
		return errors.NewPersistenceFailedError("projects", err)
	}
	return nil
}

// List returns all saved projects in save order.
func (p *Projects) List(ctx context.Context) ([]models.SavedProject, error) {
	raw, found, err := loadRaw(ctx, p.rdb, projectsKey, "projects")
	if err != nil {
		return nil, err
	}
	items := []models.SavedProject{}
	if found {
		hydrate(raw, p.schema, "projects", p.logger, &items)
	}
	return items, nil
}

// FindByImage reports whether any saved project carries this exact image
// artifact. Callers use it for the "already saved" check before Save.
func (p *Projects) FindByImage(ctx context.Context, artifact string) (bool, error) {
	if artifact == "" {
		return false, nil
	}
	items, err := p.List(ctx)
	if err != nil {
		return false, err
	}
	for _, item := range items {
		if item.Image == artifact {
			return true, nil
		}
	}
	return false, nil
}

func (p *Projects) load(ctx context.Context, tx *redis.Tx) ([]models.SavedProject, error) {
	raw, err := tx.Get(ctx, projectsKey).Result()
	items := []models.SavedProject{}
	if err == redis.Nil {
		return items, nil
	}
	if err != nil {
		return nil, err
	}
	hydrate(raw, p.schema, "projects", p.logger, &items)
	return items, nil
}

func (p *Projects) write(ctx context.Context, tx *redis.Tx, items []models.SavedProject) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, projectsKey, data, 0)
		return nil
	})
	return err
}
