package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"medivault.org/internal/auth"
	"medivault.org/internal/document"
)

func (a *API) handleFilesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.uploadFile(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

func (a *API) handleFileResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/files/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if strings.HasSuffix(path, "/download") {
		id := strings.TrimSuffix(strings.TrimSuffix(path, "/download"), "/")
		if id == "" {
			writeError(w, r, http.StatusNotFound, "file not found")
			return
		}
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.downloadFile(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getFileInfo(w, r, path)
	case http.MethodDelete:
		a.deleteFile(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (a *API) uploadFile(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.requireOperation(w, r, auth.OpFileUpload)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed multipart body")
		return
	}
	recordID := strings.TrimSpace(r.FormValue("medical_record_id"))
	if recordID == "" {
		writeError(w, r, http.StatusBadRequest, "medical_record_id is required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, document.MaxUploadSize+1))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "failed to read file")
		return
	}

	doc, err := a.docs.Upload(r.Context(), actor, document.UploadInput{
		RecordID: recordID,
		Filename: header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		handleDocumentError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "file uploaded successfully",
		"file": map[string]any{
			"id":          doc.ID,
			"filename":    doc.Filename,
			"size":        doc.Size,
			"uploaded_at": doc.UploadedAt,
		},
	})
}

func (a *API) downloadFile(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.requireOperation(w, r, auth.OpFileDownload)
	if !ok {
		return
	}

	res, err := a.docs.Download(r.Context(), actor, id)
	if err != nil {
		handleDocumentError(w, r, err)
		return
	}

	contentType := res.MIMEType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	_, _ = w.Write(res.Data)
}

func (a *API) getFileInfo(w http.ResponseWriter, r *http.Request, id string) {
	_, ok := a.requireOperation(w, r, auth.OpFileRead)
	if !ok {
		return
	}

	doc, err := a.docs.Get(r.Context(), id)
	if err != nil {
		handleDocumentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"file": doc})
}

func (a *API) deleteFile(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.requireOperation(w, r, auth.OpFileDelete)
	if !ok {
		return
	}

	if err := a.docs.Delete(r.Context(), actor, id); err != nil {
		handleDocumentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "file deleted successfully"})
}

// handleDocumentError maps the custody error taxonomy to stable responses.
// Internal detail stays in operational logs, never in the body.
func handleDocumentError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, document.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, document.ErrTooLarge):
		writeError(w, r, http.StatusRequestEntityTooLarge, "file exceeds the 50 MiB limit")
	case errors.Is(err, document.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "file not found or access denied")
	case errors.Is(err, document.ErrConflict):
		writeError(w, r, http.StatusConflict, "conflicting file metadata")
	case errors.Is(err, document.ErrIntegrity):
		writeError(w, r, http.StatusInternalServerError, "file is corrupted or has been tampered with")
	case errors.Is(err, document.ErrStorageTimeout):
		writeError(w, r, http.StatusGatewayTimeout, "storage timeout")
	case errors.Is(err, document.ErrStorageWrite), errors.Is(err, document.ErrStorageRead):
		writeError(w, r, http.StatusBadGateway, "storage unavailable")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
