package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/pocketbase/pocketbase/tools/filesystem"

	"ticketing/internal/authz"
	"ticketing/internal/status"
	"ticketing/internal/store"
	"ticketing/models"
)

const (
	maxImageSide   = 1600
	uploadsPrefix  = "uploads/"
	UploadsURLPath = "/api/v1/uploads/"
)

// FileStore keeps uploaded files under flat keys.
type FileStore interface {
	Save(ctx context.Context, key string, content []byte) error
	Serve(w http.ResponseWriter, r *http.Request, key string) error
	Delete(ctx context.Context, key string) error
}

// PocketBaseFiles stores uploads on the app filesystem (local directory or S3).
type PocketBaseFiles struct {
	open func() (*filesystem.System, error)
}

func NewPocketBaseFiles(open func() (*filesystem.System, error)) *PocketBaseFiles {
	return &PocketBaseFiles{open: open}
}

func (f *PocketBaseFiles) Save(_ context.Context, key string, content []byte) error {
	fsys, err := f.open()
	if err != nil {
		return fmt.Errorf("open filesystem: %w", err)
	}
	defer fsys.Close()

	return fsys.Upload(content, uploadsPrefix+key)
}

func (f *PocketBaseFiles) Serve(w http.ResponseWriter, r *http.Request, key string) error {
	fsys, err := f.open()
	if err != nil {
		return fmt.Errorf("open filesystem: %w", err)
	}
	defer fsys.Close()

	if err := fsys.Serve(w, r, uploadsPrefix+key, key); err != nil {
		if errors.Is(err, filesystem.ErrNotFound) {
			return status.Errorf(status.ErrNotFound, "file not found")
		}
		return err
	}
	return nil
}

func (f *PocketBaseFiles) Delete(_ context.Context, key string) error {
	fsys, err := f.open()
	if err != nil {
		return fmt.Errorf("open filesystem: %w", err)
	}
	defer fsys.Close()

	if err := fsys.Delete(uploadsPrefix + key); err != nil {
		if errors.Is(err, filesystem.ErrNotFound) {
			return status.Errorf(status.ErrNotFound, "file not found")
		}
		return err
	}
	return nil
}

type UploadService struct {
	store    *store.Store
	files    FileStore
	maxBytes int64
}

func NewUploadService(st *store.Store, files FileStore, maxBytes int64) *UploadService {
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &UploadService{store: st, files: files, maxBytes: maxBytes}
}

// MaxBytes is the largest accepted upload.
func (s *UploadService) MaxBytes() int64 {
	return s.maxBytes
}

// UploadImage decodes an image, fits it into a 1600px square, stores it as JPEG
// and, when eventID is set, makes it the event's image.
func (s *UploadService) UploadImage(ctx context.Context, actor models.Actor, src io.Reader, eventID string) (*models.Upload, error) {
	var event *models.Event
	if eventID != "" {
		e, err := s.store.Q(ctx).FindEvent(eventID)
		if err != nil {
			return nil, err
		}
		if !authz.Can(actor, authz.Events, authz.Update, e.OrganizerID) {
			return nil, forbidden("you are not allowed to update this event")
		}
		event = e
	}

	raw, err := io.ReadAll(io.LimitReader(src, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(raw)) > s.maxBytes {
		return nil, status.Errorf(status.ErrInvalidRequest, "file: must not exceed %d bytes", s.maxBytes)
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, status.Errorf(status.ErrInvalidRequest, "file: must be a valid image")
	}
	b := img.Bounds()
	if b.Dx() > maxImageSide || b.Dy() > maxImageSide {
		img = imaging.Fit(img, maxImageSide, maxImageSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	key := uuid.NewString() + ".jpg"
	if err := s.files.Save(ctx, key, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}
	out := &models.Upload{Key: key, UserID: actor.ID, EventID: eventID, Size: int64(buf.Len()), URL: UploadsURLPath + key}

	err = s.store.Transactional(ctx, func(q *store.Queries) error {
		if err := q.CreateUpload(out); err != nil {
			return err
		}
		if event == nil {
			return nil
		}
		e, err := q.FindEvent(event.ID)
		if err != nil {
			return err
		}
		e.ImageURL = out.URL
		return q.SaveEvent(e)
	})
	if err != nil {
		if derr := s.files.Delete(ctx, key); derr != nil {
			slog.Warn("Failed to remove orphaned upload", "error", derr, "key", key)
		}
		return nil, err
	}

	slog.Info("Image uploaded", "key", key, "user_id", actor.ID, "event_id", eventID, "bytes", buf.Len())
	return out, nil
}

// Serve writes a stored upload. Keys other than the ones UploadImage hands out are refused.
func (s *UploadService) Serve(w http.ResponseWriter, r *http.Request, key string) error {
	if !validUploadKey(key) {
		return status.Errorf(status.ErrNotFound, "file not found")
	}
	return s.files.Serve(w, r, key)
}

// List returns the caller's uploads, or every upload for admins.
func (s *UploadService) List(ctx context.Context, actor models.Actor, page PageQuery) (models.Page[models.Upload], error) {
	owner := actor.ID
	if authz.Allowed(actor.Role, authz.Uploads, authz.Read) {
		owner = ""
	}

	page = page.normalized()
	out, err := s.store.Q(ctx).ListUploads(owner, page.Page, page.PerPage)
	if err != nil {
		return models.Page[models.Upload]{}, err
	}
	for i := range out.Items {
		out.Items[i].URL = UploadsURLPath + out.Items[i].Key
	}
	return out, nil
}

// Delete removes an upload the caller owns, or any upload for admins. Events
// showing the image lose it.
func (s *UploadService) Delete(ctx context.Context, actor models.Actor, key string) error {
	if !validUploadKey(key) {
		return status.Errorf(status.ErrNotFound, "file not found")
	}

	up, err := s.store.Q(ctx).FindUpload(key)
	if err != nil {
		return err
	}
	if !authz.Can(actor, authz.Uploads, authz.Delete, up.UserID) {
		return forbidden("you are not allowed to delete this file")
	}

	if err := s.files.Delete(ctx, key); err != nil && !errors.Is(err, status.ErrNotFound) {
		return fmt.Errorf("delete image: %w", err)
	}

	err = s.store.Transactional(ctx, func(q *store.Queries) error {
		if err := q.DeleteUpload(key); err != nil {
			return err
		}
		return q.ClearEventImage(UploadsURLPath + key)
	})
	if err != nil {
		return err
	}

	slog.Info("Image deleted", "key", key, "user_id", actor.ID)
	return nil
}

func validUploadKey(key string) bool {
	id, ok := strings.CutSuffix(key, ".jpg")
	if !ok {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}
