package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ascheung/poolbot/internal/domain"
)

// fakeBlobReader serves archive objects from an in-memory map.
type fakeBlobReader struct {
	objects map[string]string
	listErr error
}

func (r *fakeBlobReader) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	body, ok := r.objects[path]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", path, domain.ErrNotFound)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (r *fakeBlobReader) List(ctx context.Context, prefix string) ([]domain.BlobInfo, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var infos []domain.BlobInfo
	for path, body := range r.objects {
		if strings.HasPrefix(path, prefix) {
			infos = append(infos, domain.BlobInfo{
				Path:         path,
				Size:         int64(len(body)),
				LastModified: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
			})
		}
	}
	return infos, nil
}

func (r *fakeBlobReader) Exists(ctx context.Context, path string) (bool, error) {
	_, ok := r.objects[path]
	return ok, nil
}

var _ domain.BlobReader = (*fakeBlobReader)(nil)

func newArchiveHandler(reader *fakeBlobReader) *ArchiveHandler {
	return NewArchiveHandler(reader, slog.New(slog.DiscardHandler))
}

func TestArchiveListObjects(t *testing.T) {
	reader := &fakeBlobReader{objects: map[string]string{
		"archive/ledger/2025-06/20250701T000000Z.jsonl": "{}\n",
		"archive/audit/2025-06/20250701T000000Z.jsonl":  "{}\n{}\n",
	}}
	h := newArchiveHandler(reader)

	req := httptest.NewRequest(http.MethodGet, "/api/archive?prefix=archive/ledger/", nil)
	rec := httptest.NewRecorder()
	h.ListObjects(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Prefix  string `json:"prefix"`
		Objects []struct {
			Path string `json:"path"`
			Size int64  `json:"size"`
		} `json:"objects"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "archive/ledger/", body.Prefix)
	require.Len(t, body.Objects, 1)
	assert.Equal(t, "archive/ledger/2025-06/20250701T000000Z.jsonl", body.Objects[0].Path)
	assert.Equal(t, int64(3), body.Objects[0].Size)
}

func TestArchiveListRejectsOutsidePrefix(t *testing.T) {
	h := newArchiveHandler(&fakeBlobReader{objects: map[string]string{}})

	req := httptest.NewRequest(http.MethodGet, "/api/archive?prefix=secrets/", nil)
	rec := httptest.NewRecorder()
	h.ListObjects(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArchiveGetObjectStreamsJSONL(t *testing.T) {
	const content = `{"id":"e1"}` + "\n"
	reader := &fakeBlobReader{objects: map[string]string{
		"archive/ledger/2025-06/20250701T000000Z.jsonl": content,
	}}
	h := newArchiveHandler(reader)

	req := httptest.NewRequest(http.MethodGet, "/api/archive/object?path=archive/ledger/2025-06/20250701T000000Z.jsonl", nil)
	rec := httptest.NewRecorder()
	h.GetObject(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))
	assert.Equal(t, content, rec.Body.String())
}

func TestArchiveGetObjectNotFound(t *testing.T) {
	h := newArchiveHandler(&fakeBlobReader{objects: map[string]string{}})

	req := httptest.NewRequest(http.MethodGet, "/api/archive/object?path=archive/ledger/2025-06/missing.jsonl", nil)
	rec := httptest.NewRecorder()
	h.GetObject(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArchiveGetObjectRejectsBadPaths(t *testing.T) {
	h := newArchiveHandler(&fakeBlobReader{objects: map[string]string{}})

	for _, path := range []string{"", "other/key.jsonl", "archive/../secrets"} {
		req := httptest.NewRequest(http.MethodGet, "/api/archive/object?path="+path, nil)
		rec := httptest.NewRecorder()
		h.GetObject(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "path %q", path)
	}
}
