package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/xcodebn/zoun"
	"go.uber.org/zap"
)

// APIResponse is the standard response format
type APIResponse struct {
	Success bool           `json:"success"`
	Data    any            `json:"data,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse is the error body of a failed request
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// writeJSON writes JSON response to http.ResponseWriter
func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.S().Warnw("failed to encode response", "error", err)
	}
}

// writeSuccess writes a success response
func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, APIResponse{Success: true, Data: data})
}

// writeError writes an error response with an explicit status and code
func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, APIResponse{
		Success: false,
		Error:   &ErrorResponse{Code: code, Message: message},
	})
}

// writeZounError maps err to its status and writes the public part of it.
// Internal errors are logged and rendered with the generic message only.
func writeZounError(w http.ResponseWriter, r *http.Request, err error) {
	status := zoun.HTTPStatus(err)
	ze := zoun.AsZounError(err)

	body := &ErrorResponse{Code: ze.Code, Message: zoun.PublicMessage(err)}
	if zoun.IsInternalError(err) {
		zap.S().Errorw("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		body.Details = ze.Details
	}
	writeJSON(w, status, APIResponse{Success: false, Error: body})
}

// parsePage reads a zero-based page index; anything unparsable is page 0.
func parsePage(query url.Values) int {
	page, err := strconv.Atoi(query.Get("page"))
	if err != nil || page < 0 {
		return 0
	}
	return page
}

// parseFormData reads an urlencoded or multipart submission. Only the first value of a repeated
// key is kept. Multipart bodies are limited to maxBytes.
func parseFormData(w http.ResponseWriter, r *http.Request, maxBytes int64) (zoun.FormData, error) {
	form := zoun.FormData{Values: make(map[string]string), Files: make(map[string][]byte)}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return form, errUploadTooLarge(maxBytes)
			}
			return form, fmt.Errorf("invalid multipart form: %w", err)
		}
		for name, headers := range r.MultipartForm.File {
			if len(headers) == 0 {
				continue
			}
			data, err := readUpload(headers[0])
			if err != nil {
				return form, fmt.Errorf("read upload %s: %w", name, err)
			}
			form.Files[name] = data
		}
	} else if err := r.ParseForm(); err != nil {
		return form, fmt.Errorf("invalid form: %w", err)
	}

	for name, values := range r.PostForm {
		if len(values) > 0 {
			form.Values[name] = values[0]
		}
	}
	return form, nil
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func errUploadTooLarge(maxBytes int64) error {
	return zoun.NewZounError(zoun.ErrorTypeBadRequest, "UPLOAD_TOO_LARGE",
		fmt.Sprintf("Upload exceeds the limit of %d MB", maxBytes>>20))
}

// contentDisposition builds the attachment header of a download.
func contentDisposition(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}
