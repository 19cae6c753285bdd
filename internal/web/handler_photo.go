package web

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/vbonduro/envmon/internal/photostore"
)

const maxPhotoSize = 20 * 1024 * 1024 // 20 MB

// allowedImageTypes is the set of MIME types accepted for uploaded photos.
// net/http.DetectContentType handles JPEG, PNG, and GIF via magic-byte
// sniffing. WebP is detected separately because the WHATWG sniff spec (and
// therefore the stdlib) does not include a WebP signature.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// isWebP reports whether data is a WebP image (RIFF container with "WEBP" at
// offset 8).
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// allowedImageMIME returns the detected MIME type and true if the data is an
// accepted image format, or ("", false) otherwise.
func allowedImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

func (s *Server) handleCapturePhoto(w http.ResponseWriter, r *http.Request) {
	if err := s.service.CapturePhoto(r.Context()); err != nil {
		s.logger.Warn("capture photo failed", "error", err)
	}
	redirect(w, r, "/home")
}

// handleUploadPhoto accepts a photo taken by the browser, typically through
// a file input with the capture attribute on a phone.
func (s *Server) handleUploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoSize)
	if err := r.ParseMultipartForm(maxPhotoSize); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "image file required", http.StatusBadRequest)
		return
	}
	defer closeWithLog(file, "upload file", s.logger)

	imageData, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusInternalServerError)
		s.logger.Error("read upload failed", "error", err)
		return
	}

	mimeType, ok := allowedImageMIME(imageData)
	if !ok {
		http.Error(w, "unsupported image format", http.StatusBadRequest)
		return
	}

	if err := s.service.AttachPhoto(r.Context(), bytes.NewReader(imageData)); err != nil {
		http.Error(w, "failed to process photo", http.StatusBadRequest)
		s.logger.Warn("attach photo failed", "mime_type", mimeType, "error", err)
		return
	}
	redirect(w, r, "/home")
}

func (s *Server) handleGetPendingPhoto(w http.ResponseWriter, r *http.Request) {
	reader, mimeType, err := s.service.PendingPhoto(r.Context())
	if errors.Is(err, photostore.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "failed to read photo", http.StatusInternalServerError)
		s.logger.Error("read pending photo failed", "error", err)
		return
	}
	defer closeWithLog(reader, "photo reader", s.logger)

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "no-store")
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write photo failed", "error", err)
	}
}
