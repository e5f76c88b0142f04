package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"mohaweel/internal/domain"
	"mohaweel/internal/imagefile"
	"mohaweel/internal/messages"
)

// multipartOverhead leaves room for boundaries and form fields around a
// maximum-size file.
const multipartOverhead = 1 << 20

type dataURLRequest struct {
	DataURL string `json:"data_url"`
}

// PutImage accepts a multipart "file" field or a JSON {"data_url": ...}
// body. Rejected files leave the session untouched.
func (a *App) PutImage(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := a.session(w, r)
	if !ok {
		return
	}

	img, err := a.readImage(w, r)
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			a.logger(r).Debug().Str("session_id", id).Str("code", de.Code).Msg("image rejected")
			a.domainError(w, r, acquisitionStatus(de), de)
			return
		}
		a.logger(r).Warn().Err(err).Str("session_id", id).Msg("image upload failed")
		a.error(w, r, http.StatusBadRequest, messages.CodeBadRequest)
		return
	}

	a.writeView(w, r, http.StatusOK, id, ctrl.SelectImage(img))
}

func (a *App) readImage(w http.ResponseWriter, r *http.Request) (domain.EncodedImage, error) {
	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxImageBytes*2+multipartOverhead)
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return domain.EncodedImage{}, fmt.Errorf("parse content type: %w", err)
	}

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(domain.MaxImageBytes + multipartOverhead); err != nil {
			return domain.EncodedImage{}, bodyError(err)
		}
		defer r.MultipartForm.RemoveAll()
		files := r.MultipartForm.File["file"]
		if len(files) == 0 {
			return domain.EncodedImage{}, errors.New("missing file field")
		}
		return imagefile.Acquire(r.Context(), imagefile.FromMultipart(files[0]))
	case "application/json":
		var req dataURLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return domain.EncodedImage{}, bodyError(err)
		}
		return imagefile.FromDataURL(req.DataURL)
	default:
		return domain.EncodedImage{}, fmt.Errorf("unsupported content type %q", mediaType)
	}
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return domain.Validation(domain.CodeTooLarge)
	}
	return err
}

func acquisitionStatus(err *domain.Error) int {
	switch err.Code {
	case domain.CodeTooLarge:
		return http.StatusRequestEntityTooLarge
	case domain.CodeInvalidType:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusUnprocessableEntity
	}
}

func (a *App) DeleteImage(w http.ResponseWriter, r *http.Request) {
	id, ctrl, ok := a.session(w, r)
	if !ok {
		return
	}
	a.writeView(w, r, http.StatusOK, id, ctrl.ClearImage())
}

// Download serves the generated image from memory as an attachment named
// after the time of the download.
func (a *App) Download(w http.ResponseWriter, r *http.Request) {
	_, ctrl, ok := a.session(w, r)
	if !ok {
		return
	}
	res, ok := ctrl.Snapshot().Result()
	if !ok {
		a.error(w, r, http.StatusNotFound, messages.CodeNoResult)
		return
	}

	contentType := res.Generated.MIMEType
	if contentType == "" {
		contentType = domain.GeneratedMIMEType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Generated.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", domain.DownloadName(time.Now())))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Generated.Data); err != nil {
		a.logger(r).Debug().Err(err).Msg("download interrupted")
	}
}
