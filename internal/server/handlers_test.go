package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/HikariJones/Inclusive-AI-UMKM/constants"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/entity"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/export"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/pipeline"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/recognize"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/repository"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/storage"
)

type stubExtractor struct {
	tokens []entity.Token
}

func (s *stubExtractor) Extract(_ context.Context, _ []byte) (recognize.Result, error) {
	return recognize.Result{Tokens: s.tokens, Backend: constants.BackendVision}, nil
}

func tok(text string, cx, cy float64) entity.Token {
	return entity.Token{
		Text: text,
		Box: entity.BBox{
			XMin: cx - 10, YMin: cy - 8,
			XMax: cx + 10, YMax: cy + 8,
		},
		Confidence: 0.9,
	}
}

func newTestServer(t *testing.T, tokens []entity.Token) *Server {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(filepath.Join(dir, "artifacts"))
	require.NoError(t, err)
	reg, err := repository.NewBoltRegistry(filepath.Join(dir, "registry.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	proc := pipeline.NewProcessor(pipeline.Config{}, &stubExtractor{tokens: tokens},
		export.NewWriter(nil), store, reg, nil)
	creds := []Credentials{
		{Username: "ani", Password: "rahasia"},
		{Username: "budi", Password: "kunci"},
	}
	return New(proc, reg, store, creds, nil)
}

func uploadRequest(t *testing.T, user, pass string) *http.Request {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.White)
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, img))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "laporan.png")
	require.NoError(t, err)
	_, err = fw.Write(pngBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("header_row", "true"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/extractions", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetBasicAuth(user, pass)
	return req
}

func submitOne(t *testing.T, srv *Server, user, pass string) entity.ExtractionResult {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, uploadRequest(t, user, pass))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result entity.ExtractionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result
}

func TestSubmitThenFetchArtifact(t *testing.T) {
	srv := newTestServer(t, []entity.Token{
		tok("Item", 30, 10), tok("Qty", 300, 10),
		tok("Buku", 30, 100), tok("5", 300, 100),
	})

	result := submitOne(t, srv, "ani", "rahasia")
	require.True(t, result.Success, "error: %s", result.Error)
	assert.Equal(t, 2, result.RowsExtracted)
	assert.Equal(t, 2, result.ColumnsDetected)
	require.NotEmpty(t, result.ArtifactID)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/artifacts/"+result.ArtifactID, nil)
	req.SetBasicAuth("ani", "rahasia")
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, constants.XLSXContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), result.ArtifactID)

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Item", "Qty"}, rows[0])
	assert.Equal(t, []string{"Buku", "5"}, rows[1])
}

func TestFetchForeignArtifactIs404(t *testing.T) {
	srv := newTestServer(t, []entity.Token{tok("a", 30, 10)})

	result := submitOne(t, srv, "ani", "rahasia")
	require.True(t, result.Success)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/artifacts/"+result.ArtifactID, nil)
	req.SetBasicAuth("budi", "kunci")
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFetchUnknownArtifactIs404(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, id := range []string{uuid.New().String(), "not-a-uuid"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/artifacts/"+id, nil)
		req.SetBasicAuth("ani", "rahasia")
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, id)
	}
}

func TestListArtifactsScopedToOwner(t *testing.T) {
	srv := newTestServer(t, []entity.Token{tok("a", 30, 10)})

	aniResult := submitOne(t, srv, "ani", "rahasia")
	require.True(t, aniResult.Success)
	budiResult := submitOne(t, srv, "budi", "kunci")
	require.True(t, budiResult.Success)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/artifacts", nil)
	req.SetBasicAuth("ani", "rahasia")
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var items []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, aniResult.ArtifactID, items[0].ID)
}

func TestUnauthorizedRequests(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name  string
		setup func(*http.Request)
	}{
		{"no credentials", func(*http.Request) {}},
		{"wrong password", func(r *http.Request) { r.SetBasicAuth("ani", "salah") }},
		{"unknown user", func(r *http.Request) { r.SetBasicAuth("eve", "rahasia") }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/artifacts", nil)
			tc.setup(req)
			srv.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestSubmitUnsupportedExtensionIs400(t *testing.T) {
	srv := newTestServer(t, []entity.Token{tok("a", 30, 10)})

	for _, filename := range []string{"laporan.exe", "laporan.txt", "laporan"} {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, err := mw.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte("payload"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/extractions", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.SetBasicAuth("ani", "rahasia")
		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, filename)
		assert.Contains(t, rec.Body.String(), "unsupported file type", filename)
	}
}

func TestSubmitAcceptsUppercaseExtension(t *testing.T) {
	srv := newTestServer(t, []entity.Token{tok("a", 30, 10)})

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var pngBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, img))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "LAPORAN.PNG")
	require.NoError(t, err)
	_, err = fw.Write(pngBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/extractions", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetBasicAuth("ani", "rahasia")
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestSubmitWithoutImageFieldIs400(t *testing.T) {
	srv := newTestServer(t, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("header_row", "true"))
	require.NoError(t, mw.Close())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/extractions", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetBasicAuth("ani", "rahasia")
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthNeedsNoAuth(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
