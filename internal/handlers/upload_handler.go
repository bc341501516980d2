package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"ticketing/internal/services"
)

type UploadHandler struct {
	uploads *services.UploadService
}

func NewUploadHandler(uploads *services.UploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

// Upload accepts a multipart form with an image in "file" and an optional "event_id".
func (h *UploadHandler) Upload(e *core.RequestEvent) error {
	// room for the multipart framing around the file
	limit := h.uploads.MaxBytes() + 1<<20
	e.Request.Body = http.MaxBytesReader(e.Response, e.Request.Body, limit)

	file, _, err := e.Request.FormFile("file")
	if err != nil {
		return e.JSON(http.StatusBadRequest, envelope{Errors: []string{"file: an image file is required"}})
	}
	defer file.Close()

	eventID := e.Request.FormValue("event_id")
	up, err := h.uploads.UploadImage(e.Request.Context(), actor(e), file, eventID)
	if err != nil {
		return fail(e, err, eventID)
	}
	return respond(e, http.StatusCreated, up, "File uploaded successfully")
}

func (h *UploadHandler) Serve(e *core.RequestEvent) error {
	key := e.Request.PathValue("key")
	if err := h.uploads.Serve(e.Response, e.Request, key); err != nil {
		return fail(e, err, key)
	}
	return nil
}

func (h *UploadHandler) List(e *core.RequestEvent) error {
	page, err := h.uploads.List(e.Request.Context(), actor(e), pageQuery(e))
	if err != nil {
		return fail(e, err, "")
	}
	return respond(e, http.StatusOK, page, "")
}

func (h *UploadHandler) Delete(e *core.RequestEvent) error {
	key := e.Request.PathValue("key")
	if err := h.uploads.Delete(e.Request.Context(), actor(e), key); err != nil {
		return fail(e, err, key)
	}
	return respond(e, http.StatusOK, nil, "File deleted successfully")
}
