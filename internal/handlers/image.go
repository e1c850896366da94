package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"study-companion/internal/middleware"
	"study-companion/internal/models"
)

// multipartOverhead leaves room for boundaries and headers around the file.
const multipartOverhead = 64 * 1024

type ImageHandler struct {
	maxBytes int64
	logger   zerolog.Logger
}

func NewImageHandler(maxBytes int64, logger zerolog.Logger) *ImageHandler {
	return &ImageHandler{maxBytes: maxBytes, logger: logger}
}

func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	limitMB := strconv.FormatInt(h.maxBytes/(1024*1024), 10)
	tooLarge := "File size exceeds " + limitMB + "MB limit"

	if r.ContentLength > h.maxBytes+multipartOverhead {
		fail(w, r, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", tooLarge)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			fail(w, r, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", tooLarge)
			return
		}
		fail(w, r, http.StatusBadRequest, "NO_IMAGE", "Please upload an image first.")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil || len(data) == 0 {
		h.logger.Warn().Err(err).Str("filename", header.Filename).Msg("Failed to read uploaded image")
		fail(w, r, http.StatusBadRequest, "UNREADABLE_IMAGE", "Failed to read the image file.")
		return
	}
	if int64(len(data)) > h.maxBytes {
		fail(w, r, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", tooLarge)
		return
	}

	mimeType := mimetype.Detect(data).String()
	if !strings.HasPrefix(mimeType, "image/") {
		fail(w, r, http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT", "Please upload an image file.")
		return
	}

	sess := middleware.GetSession(r.Context())
	sess.SetImage(&models.Image{
		Data:       data,
		MIMEType:   mimeType,
		Filename:   header.Filename,
		Size:       len(data),
		UploadedAt: time.Now(),
	})

	respond(w, r, http.StatusOK, sess.Snapshot())
}

// Get serves the uploaded image for the preview.
func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	img := middleware.GetSession(r.Context()).Image()
	if img.Empty() {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "No image uploaded", r))
		return
	}

	w.Header().Set("Content-Type", img.MIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(img.Data)
}

func (h *ImageHandler) Remove(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSession(r.Context())
	sess.RemoveImage()
	respond(w, r, http.StatusOK, sess.Snapshot())
}
