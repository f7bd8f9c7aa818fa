package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/horecametrics/importer/internal/importer"
	"github.com/horecametrics/importer/internal/logging"
	"github.com/horecametrics/importer/internal/sheet"
)

// handleHealth reports service and database health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Pool().Ping(r.Context()); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListProfiles returns the available import profiles.
func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"profiles": importer.ProfileNames()})
}

// handleAnalyze runs header detection and mapping on an uploaded sheet
// without writing anything. The response is the same snapshot that would be
// written to the audit trail when the import runs.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.profileFromRequest(w, r)
	if !ok {
		return
	}

	rows, _, ok := s.sheetFromRequest(w, r)
	if !ok {
		return
	}

	analysis, err := importer.Analyze(rows, profile, s.engine.Matcher())
	if err != nil {
		var analysisErr *importer.AnalysisError
		if errors.As(err, &analysisErr) {
			writeError(w, r, http.StatusUnprocessableEntity, analysisErr.Error())
			return
		}
		writeError(w, r, http.StatusInternalServerError, "analysis failed")
		return
	}

	writeJSON(w, http.StatusOK, analysis)
}

// handleRun executes a full import run for an uploaded sheet.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.profileFromRequest(w, r)
	if !ok {
		return
	}

	rows, fileName, ok := s.sheetFromRequest(w, r)
	if !ok {
		return
	}

	var entityID uuid.UUID
	if raw := r.FormValue("location_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "location_id is not a valid UUID")
			return
		}
		entityID = id
	}

	// An optional mapping part replaces the proposed mapping wholesale,
	// typically after the caller reviewed an analyze response.
	var mapping *importer.Mapping
	if raw := r.FormValue("mapping"); raw != "" {
		var m importer.Mapping
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			writeError(w, r, http.StatusBadRequest, "mapping is not valid JSON")
			return
		}
		mapping = &m
	}

	log := logging.FromContext(r.Context())
	log.Info("import requested", "profile", profile.Name, "file", fileName)

	result, err := s.engine.Run(r.Context(), importer.RunRequest{
		Rows:     rows,
		FileName: fileName,
		EntityID: entityID,
		Profile:  profile,
		Mapping:  mapping,
	})
	if err != nil {
		var analysisErr *importer.AnalysisError
		switch {
		case errors.As(err, &analysisErr):
			writeJSON(w, http.StatusUnprocessableEntity, result)
		case r.Context().Err() != nil:
			// Client went away mid-run; nothing useful to write.
		default:
			writeError(w, r, http.StatusInternalServerError, "import run failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// profileFromRequest resolves the {profile} URL parameter.
func (s *Server) profileFromRequest(w http.ResponseWriter, r *http.Request) (importer.Profile, bool) {
	profile, err := importer.ProfileByName(chi.URLParam(r, "profile"))
	if err != nil {
		writeError(w, r, http.StatusNotFound, err.Error())
		return importer.Profile{}, false
	}
	return profile, true
}

// sheetFromRequest reads the uploaded "file" part into a cell matrix.
func (s *Server) sheetFromRequest(w http.ResponseWriter, r *http.Request) ([][]sheet.Cell, string, bool) {
	if err := r.ParseMultipartForm(s.cfg.Import.MaxFileSize); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid multipart request")
		return nil, "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "missing file upload")
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.Import.MaxFileSize+1))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "failed to read upload")
		return nil, "", false
	}
	if int64(len(data)) > s.cfg.Import.MaxFileSize {
		writeError(w, r, http.StatusRequestEntityTooLarge, "file exceeds size limit")
		return nil, "", false
	}

	rows, err := sheet.ReadBytes(header.Filename, data)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "unreadable spreadsheet: "+err.Error())
		return nil, "", false
	}

	return rows, header.Filename, true
}
