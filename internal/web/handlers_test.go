package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/horecametrics/importer/internal/config"
	"github.com/horecametrics/importer/internal/importer"
)

type nopInserter struct{ inserted int }

func (f *nopInserter) InsertMany(_ context.Context, _ string, records []importer.Record) error {
	f.inserted += len(records)
	return nil
}

type nopAudit struct{}

func (nopAudit) LogMapping(context.Context, uuid.UUID, *importer.Analysis) error { return nil }
func (nopAudit) LogRejections(context.Context, uuid.UUID, []importer.ValidationError) error {
	return nil
}

func testServer(t *testing.T) (*Server, *nopInserter) {
	t.Helper()
	inserter := &nopInserter{}
	engine := importer.NewEngine(inserter, nopAudit{}, importer.EngineOptions{})
	cfg := &config.Config{
		Server: config.ServerConfig{RequestTimeout: 10 * time.Second},
		Import: config.ImportConfig{MaxFileSize: 1 << 20, BatchSize: 500},
	}
	return NewServer(engine, nil, cfg), inserter
}

func multipartCSV(t *testing.T, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "omzet.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

const cleanCSV = "Datum,Omzet,Product,Aantal\n01/03/2024,\"120,50\",Koffie,48\n02/03/2024,\"98,20\",Thee,31\n"

func TestHandleListProfiles(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/imports/profiles", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["profiles"], "pos_sales")
	assert.Contains(t, body["profiles"], "gl_pnl")
}

func TestHandleAnalyze_UnknownProfile(t *testing.T) {
	srv, _ := testServer(t)

	body, contentType := multipartCSV(t, cleanCSV)
	req := httptest.NewRequest(http.MethodPost, "/api/imports/nope/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleAnalyze_CleanSheet(t *testing.T) {
	srv, inserter := testServer(t)

	body, contentType := multipartCSV(t, cleanCSV)
	req := httptest.NewRequest(http.MethodPost, "/api/imports/pos_sales/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var analysis importer.Analysis
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &analysis))
	assert.Equal(t, 0, analysis.HeaderRow)
	assert.Len(t, analysis.Mapping.Columns, 4)

	// Analysis must not write anything.
	assert.Zero(t, inserter.inserted)
}

func TestHandleAnalyze_UnrecognizedSheet(t *testing.T) {
	srv, _ := testServer(t)

	body, contentType := multipartCSV(t, "xkolom1x,xkolom2x,xkolom3x,xkolom4x\naaa111,bbb222,ccc333,ddd444\n")
	req := httptest.NewRequest(http.MethodPost, "/api/imports/pos_sales/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleRun_CleanSheet(t *testing.T) {
	srv, inserter := testServer(t)

	body, contentType := multipartCSV(t, cleanCSV)
	req := httptest.NewRequest(http.MethodPost, "/api/imports/pos_sales/run", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result importer.ProcessingResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, importer.StatePersisted, result.State)
	assert.Equal(t, 2, result.ProcessedCount)
	assert.Equal(t, 2, inserter.inserted)
}

func TestHandleRun_MappingOverride(t *testing.T) {
	srv, inserter := testServer(t)

	// Headers the matcher cannot place; the caller supplies the mapping.
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "omzet.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("K1,K2\n01/03/2024,\"120,50\"\n"))
	require.NoError(t, err)
	override := `{"columns":{"date":{"index":0,"header":"K1","confidence":1},"revenue":{"index":1,"header":"K2","confidence":1}}}`
	require.NoError(t, w.WriteField("mapping", override))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/imports/pos_sales/run", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result importer.ProcessingResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, importer.StatePersisted, result.State)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, 1, inserter.inserted)
}

func TestHandleRun_MalformedMappingOverride(t *testing.T) {
	srv, _ := testServer(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "omzet.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(cleanCSV))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("mapping", "{not json"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/imports/pos_sales/run", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRun_InvalidLocationID(t *testing.T) {
	srv, _ := testServer(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "omzet.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(cleanCSV))
	require.NoError(t, err)
	require.NoError(t, w.WriteField("location_id", "not-a-uuid"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/imports/pos_sales/run", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRun_MissingFile(t *testing.T) {
	srv, _ := testServer(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("location_id", uuid.NewString()))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/imports/pos_sales/run", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
