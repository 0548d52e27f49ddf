package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ascheung/poolbot/internal/domain"
)

// archivePrefix is the key space archive objects live under. Requests outside
// it are rejected so the endpoint cannot browse the rest of the bucket.
const archivePrefix = "archive/"

// ArchiveHandler serves the cold-storage archive over HTTP so operators and
// back-testing jobs can browse and download JSONL archives without S3
// credentials.
type ArchiveHandler struct {
	reader domain.BlobReader
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler over the given blob reader.
func NewArchiveHandler(reader domain.BlobReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		reader: reader,
		logger: logHandler(logger, "archive"),
	}
}

// archiveObject is the JSON shape for one listed object.
type archiveObject struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// ListObjects lists archive objects, optionally narrowed by ?prefix=. The
// prefix must stay within the archive key space.
// GET /api/archive
func (h *ArchiveHandler) ListObjects(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = archivePrefix
	}
	if !strings.HasPrefix(prefix, archivePrefix) {
		writeError(w, http.StatusBadRequest, "prefix must start with "+archivePrefix)
		return
	}

	infos, err := h.reader.List(r.Context(), prefix)
	if err != nil {
		h.logger.Error("archive list failed",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "archive storage unavailable")
		return
	}

	objects := make([]archiveObject, 0, len(infos))
	for _, info := range infos {
		objects = append(objects, archiveObject{
			Path:         info.Path,
			Size:         info.Size,
			LastModified: info.LastModified,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"prefix":  prefix,
		"objects": objects,
	})
}

// GetObject streams one archive object identified by ?path=.
// GET /api/archive/object
func (h *ArchiveHandler) GetObject(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}
	if !strings.HasPrefix(path, archivePrefix) || strings.Contains(path, "..") {
		writeError(w, http.StatusBadRequest, "path must be an archive object key")
		return
	}

	body, err := h.reader.Get(r.Context(), path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "archive object not found")
			return
		}
		h.logger.Error("archive get failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "archive storage unavailable")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Debug("archive stream interrupted",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}
