package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/filestore"
)

type listResponse struct {
	Path  string   `json:"path"`
	Items []string `json:"items"`
}

type urlResponse struct {
	URL string `json:"url"`
}

type metaResponse struct {
	Path         string    `json:"path"`
	URL          string    `json:"url"`
	LastModified time.Time `json:"last_modified"`
	Created      time.Time `json:"created"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) listDirectories(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	dirs, err := s.fs.GetDirectories(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Path: p, Items: orEmpty(dirs)})
}

func (s *Server) directoryExists(w http.ResponseWriter, r *http.Request) {
	ok, err := s.fs.DirectoryExists(r.Context(), r.URL.Query().Get("path"))
	s.writeExists(w, r, ok, err)
}

func (s *Server) deleteDirectory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	recursive, err := parseBool(q.Get("recursive"), false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	all, err := parseBool(q.Get("all"), false)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.fs.IsRoot(q.Get("path")) && !all {
		s.writeError(w, r, errs.New(errs.ErrKindInvalidInput, "deleting the root requires all=true"))
		return
	}
	if err := s.fs.DeleteDirectory(r.Context(), q.Get("path"), recursive); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	files, err := s.fs.GetFiles(r.Context(), q.Get("path"), q.Get("filter"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Path: q.Get("path"), Items: orEmpty(files)})
}

func (s *Server) getFile(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")

	modified, err := s.fs.GetLastModified(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	content, err := s.fs.OpenFile(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", filestore.ContentTypeBinary)
	http.ServeContent(w, r, "", modified, content)
}

func (s *Server) fileExists(w http.ResponseWriter, r *http.Request) {
	ok, err := s.fs.FileExists(r.Context(), r.URL.Query().Get("path"))
	s.writeExists(w, r, ok, err)
}

func (s *Server) putFile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	override, err := parseBool(q.Get("override"), true)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	body := io.Reader(r.Body)
	if s.cfg.MaxUpload > 0 {
		body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUpload)
	}

	p := q.Get("path")
	if err := s.fs.AddFile(r.Context(), p, body, override); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, urlResponse{URL: s.fs.GetURL(p)})
}

func (s *Server) deleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.fs.DeleteFile(r.Context(), r.URL.Query().Get("path")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) url(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, urlResponse{URL: s.fs.GetURL(r.URL.Query().Get("path"))})
}

func (s *Server) relative(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, urlResponse{URL: s.fs.GetRelativePath(r.URL.Query().Get("path"))})
}

func (s *Server) meta(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")

	modified, err := s.fs.GetLastModified(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.fs.GetCreated(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metaResponse{
		Path:         p,
		URL:          s.fs.GetURL(p),
		LastModified: modified,
		Created:      created,
	})
}

// --- helpers ---

func (s *Server) writeExists(w http.ResponseWriter, r *http.Request, ok bool, err error) {
	switch {
	case err != nil:
		w.WriteHeader(statusFor(err))
		s.logFailure(r, err)
	case ok:
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logFailure(r, err)
	}
	writeJSON(w, status, errorResponse{
		Error:     err.Error(),
		Kind:      errs.KindOf(err).String(),
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func (s *Server) logFailure(r *http.Request, err error) {
	s.log.ErrorWith("request failed", err, map[string]interface{}{
		"method":     r.Method,
		"path":       r.URL.Query().Get("path"),
		"request_id": middleware.GetReqID(r.Context()),
	})
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}

	switch errs.KindOf(err) {
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindInvalidInput:
		return http.StatusBadRequest
	case errs.ErrKindAlreadyExists:
		return http.StatusConflict
	case errs.ErrKindCanceled:
		return http.StatusGatewayTimeout
	case errs.ErrKindConfiguration:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseBool(v string, def bool) (bool, error) {
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errs.Wrap(errs.ErrKindInvalidInput, "invalid boolean "+strconv.Quote(v), err)
	}
	return b, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
