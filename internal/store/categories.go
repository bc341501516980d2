package store

import (
	"github.com/pocketbase/dbx"

	"ticketing/models"
)

func (q *Queries) CreateCategory(c *models.Category) error {
	if c.ID == "" {
		c.ID = newID()
	}
	c.CreatedAt = now()
	c.UpdatedAt = c.CreatedAt

	return q.insert("categories", dbx.Params{
		"id":          c.ID,
		"name":        c.Name,
		"description": c.Description,
		"created_at":  c.CreatedAt,
		"updated_at":  c.UpdatedAt,
	})
}

func (q *Queries) FindCategory(id string) (*models.Category, error) {
	c := &models.Category{}
	if err := q.selectFrom("categories").Where(dbx.HashExp{"id": id}).One(c); err != nil {
		return nil, translate(err, "categories")
	}
	return c, nil
}

func (q *Queries) ListCategories() ([]models.Category, error) {
	categories := []models.Category{}
	if err := q.selectFrom("categories").OrderBy("name ASC").All(&categories); err != nil {
		return nil, translate(err, "categories")
	}
	return categories, nil
}

func (q *Queries) SaveCategory(c *models.Category) error {
	c.UpdatedAt = now()
	n, err := q.update("categories", dbx.Params{
		"name":        c.Name,
		"description": c.Description,
		"updated_at":  c.UpdatedAt,
	}, dbx.HashExp{"id": c.ID})
	if err != nil {
		return err
	}
	if n == 0 {
		return translate(errNoRows, "categories")
	}
	return nil
}

// CategoryInUse reports whether any event still references the category.
func (q *Queries) CategoryInUse(id string) (bool, error) {
	n, err := q.count("events", dbx.HashExp{"category_id": id})
	return n > 0, err
}

func (q *Queries) DeleteCategory(id string) error {
	n, err := q.delete("categories", dbx.HashExp{"id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return translate(errNoRows, "categories")
	}
	return nil
}
