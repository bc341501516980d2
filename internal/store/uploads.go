package store

import (
	"github.com/pocketbase/dbx"

	"ticketing/models"
)

func (q *Queries) CreateUpload(u *models.Upload) error {
	u.CreatedAt = now()
	return q.insert("uploads", dbx.Params{
		"file_key":   u.Key,
		"user_id":    u.UserID,
		"event_id":   u.EventID,
		"size":       u.Size,
		"created_at": u.CreatedAt,
	})
}

func (q *Queries) FindUpload(key string) (*models.Upload, error) {
	u := &models.Upload{}
	if err := q.selectFrom("uploads").Where(dbx.HashExp{"file_key": key}).One(u); err != nil {
		return nil, translate(err, "uploads")
	}
	return u, nil
}

func (q *Queries) DeleteUpload(key string) error {
	n, err := q.delete("uploads", dbx.HashExp{"file_key": key})
	if err != nil {
		return err
	}
	if n == 0 {
		return translate(errNoRows, "uploads")
	}
	return nil
}

// ListUploads returns the newest uploads first. An empty userID lists every upload.
func (q *Queries) ListUploads(userID string, page, perPage int) (models.Page[models.Upload], error) {
	var where dbx.Expression
	if userID != "" {
		where = dbx.HashExp{"user_id": userID}
	}

	total, err := q.count("uploads", where)
	if err != nil {
		return models.Page[models.Upload]{}, err
	}

	off, limit := offset(page, perPage)
	uploads := []models.Upload{}
	query := q.selectFrom("uploads").OrderBy("created_at DESC", "file_key ASC").Offset(off).Limit(limit)
	if where != nil {
		query = query.Where(where)
	}
	if err := query.All(&uploads); err != nil {
		return models.Page[models.Upload]{}, translate(err, "uploads")
	}

	return models.NewPage(uploads, total, page, perPage), nil
}

// ClearEventImage unsets the image of every event pointing at url.
func (q *Queries) ClearEventImage(url string) error {
	_, err := q.update("events", dbx.Params{"image_url": "", "updated_at": now()}, dbx.HashExp{"image_url": url})
	return err
}
