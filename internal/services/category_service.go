package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/redis/go-redis/v9"

	"ticketing/internal/authz"
	"ticketing/internal/status"
	"ticketing/internal/store"
	"ticketing/models"
)

const categoriesCacheKey = "categories"

type CategoryService struct {
	store    *store.Store
	redis    redis.Cmdable
	cacheTTL time.Duration
}

func NewCategoryService(st *store.Store, redisClient redis.Cmdable, cacheTTL time.Duration) *CategoryService {
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &CategoryService{store: st, redis: redisClient, cacheTTL: cacheTTL}
}

type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (in CategoryInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Description, validation.Length(0, 1000)),
	)
}

// List returns every category, served from redis while the cache is warm.
func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	if cached, ok := s.cached(ctx); ok {
		return cached, nil
	}

	categories, err := s.store.Q(ctx).ListCategories()
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(categories); err == nil {
			if err := s.redis.Set(ctx, categoriesCacheKey, data, s.cacheTTL).Err(); err != nil {
				slog.Warn("Failed to cache categories", "error", err)
			}
		}
	}
	return categories, nil
}

func (s *CategoryService) Create(ctx context.Context, actor models.Actor, in CategoryInput) (*models.Category, error) {
	if !authz.Can(actor, authz.Categories, authz.Create, "") {
		return nil, forbidden("you are not allowed to manage categories")
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}

	c := &models.Category{Name: in.Name, Description: in.Description}
	if err := s.store.Q(ctx).CreateCategory(c); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return c, nil
}

func (s *CategoryService) Update(ctx context.Context, actor models.Actor, id string, in CategoryInput) (*models.Category, error) {
	if !authz.Can(actor, authz.Categories, authz.Update, "") {
		return nil, forbidden("you are not allowed to manage categories")
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}

	q := s.store.Q(ctx)
	c, err := q.FindCategory(id)
	if err != nil {
		return nil, err
	}
	c.Name = in.Name
	c.Description = in.Description
	if err := q.SaveCategory(c); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	return c, nil
}

// Delete removes a category no event refers to.
func (s *CategoryService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if !authz.Can(actor, authz.Categories, authz.Delete, "") {
		return forbidden("you are not allowed to manage categories")
	}

	q := s.store.Q(ctx)
	inUse, err := q.CategoryInUse(id)
	if err != nil {
		return err
	}
	if inUse {
		return status.Errorf(status.ErrConflict, "category is still used by events")
	}
	if err := q.DeleteCategory(id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *CategoryService) cached(ctx context.Context) ([]models.Category, bool) {
	if s.redis == nil {
		return nil, false
	}

	data, err := s.redis.Get(ctx, categoriesCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("Failed to read category cache", "error", err)
		}
		return nil, false
	}

	var categories []models.Category
	if err := json.Unmarshal(data, &categories); err != nil {
		slog.Warn("Discarding malformed category cache", "error", err)
		return nil, false
	}
	return categories, true
}

func (s *CategoryService) invalidate(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, categoriesCacheKey).Err(); err != nil {
		slog.Warn("Failed to invalidate category cache", "error", err)
	}
}
