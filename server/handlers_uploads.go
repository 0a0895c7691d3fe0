package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-edu-portal/internal/errors"
	"github.com/rs/zerolog"
)

const (
	maxUploadSize   = 5 << 20
	uploadFormField = "file"
)

// allowedUploadTypes maps sniffed content types to the extension files are stored with.
var allowedUploadTypes = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

type uploadResult struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	Purpose     string `json:"purpose,omitempty"`
}

// UploadHandler stores one file from a multipart form in the data folder. The content type is
// sniffed from the data, not trusted from the client.
func (s *Server) UploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+(1<<20))
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			writeMessage(w, http.StatusBadRequest, "Upload must be a multipart form of at most 5MB")
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile(uploadFormField)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorEnvelope{
				Message: "Validation failed",
				Errors:  map[string]string{uploadFormField: "A file is required"},
			})
			return
		}
		defer file.Close()

		if header.Size > maxUploadSize {
			writeMessage(w, http.StatusRequestEntityTooLarge, "File is larger than 5MB")
			return
		}

		sniff := make([]byte, 512)
		n, err := io.ReadFull(file, sniff)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			writeError(w, r, err)
			return
		}
		contentType := http.DetectContentType(sniff[:n])
		if i := strings.Index(contentType, ";"); i >= 0 {
			contentType = contentType[:i]
		}
		ext, ok := allowedUploadTypes[contentType]
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorEnvelope{
				Message: "Validation failed",
				Errors:  map[string]string{uploadFormField: "Only images and PDF files can be uploaded"},
			})
			return
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			writeError(w, r, err)
			return
		}

		id := uuid.New().String()
		size, err := s.storeUpload(id+ext, file)
		if err != nil {
			writeError(w, r, err)
			return
		}

		claims, _ := ClaimsFromContext(r.Context())
		zerolog.Ctx(r.Context()).Info().
			Str("upload_id", id).
			Str("owner", claims.UserID).
			Int64("size", size).
			Msg("file uploaded")

		writeData(w, http.StatusCreated, "File uploaded", uploadResult{
			ID:          id,
			Filename:    filepath.Base(header.Filename),
			ContentType: contentType,
			Size:        size,
			Purpose:     r.FormValue("purpose"),
		})
	}
}

func (s *Server) storeUpload(name string, src io.Reader) (int64, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return 0, errors.Wrapf(err, "create upload folder")
	}
	dst, err := os.OpenFile(filepath.Join(s.uploadDir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, errors.Wrapf(err, "create upload %s", name)
	}
	size, copyErr := io.Copy(dst, src)
	if closeErr := dst.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(dst.Name())
		return 0, fmt.Errorf("write upload %s: %w", name, copyErr)
	}
	return size, nil
}
