package handlers

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"devicehub-api/internal/auth"
	"devicehub-api/pkg/importer"
)

// ImportsHandler accepts xlsx uploads and feeds them to the device importer.
type ImportsHandler struct {
	Devices    importer.DeviceWriter
	MaxBytes   int64
	DefaultMap *importer.MappingConfig
	Log        logrus.FieldLogger
}

func NewImportsHandler(devices importer.DeviceWriter, log logrus.FieldLogger) *ImportsHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ImportsHandler{
		Devices:    devices,
		MaxBytes:   20 << 20,
		DefaultMap: importer.DefaultMapping(),
		Log:        log,
	}
}

// LoadDefaultMapping replaces the mapping used when a request sends none.
func (h *ImportsHandler) LoadDefaultMapping(path string) error {
	m, err := importer.LoadMapping(path)
	if err != nil {
		return err
	}
	h.DefaultMap = m
	return nil
}

// UploadExcel handles POST /imports/devices. Form fields: file (required
// .xlsx), mapping (optional YAML file), dry_run, max_errors.
func (h *ImportsHandler) UploadExcel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)

	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		writeError(w, http.StatusBadRequest, "INVALID_CONTENT_TYPE", "content-type must be multipart/form-data")
		return
	}
	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_FORM", "invalid multipart form: "+err.Error())
		return
	}

	dryRun, _ := strconv.ParseBool(r.FormValue("dry_run"))
	maxErrors := 50
	if v := r.FormValue("max_errors"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_MAX_ERRORS", "max_errors must be a positive integer")
			return
		}
		maxErrors = n
	}

	mapping := h.DefaultMap
	if mf, _, err := r.FormFile("mapping"); err == nil {
		m, perr := importer.ParseMapping(mf)
		mf.Close()
		if perr != nil {
			writeError(w, http.StatusBadRequest, "INVALID_MAPPING", perr.Error())
			return
		}
		mapping = m
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "MISSING_FILE", "file is required: "+err.Error())
		return
	}
	defer file.Close()

	if !isXLSX(header) {
		writeError(w, http.StatusBadRequest, "INVALID_FILE_TYPE", "only .xlsx files are accepted")
		return
	}

	log := h.Log.WithFields(logrus.Fields{
		"file":    header.Filename,
		"dry_run": dryRun,
		"user_id": auth.UserIDFromContext(r.Context()),
	})

	sum, impErr := importer.ImportExcel(r.Context(), h.Devices, file, importer.ImportOptions{
		Mapping:   mapping,
		DryRun:    dryRun,
		MaxErrors: maxErrors,
	})
	if impErr != nil {
		log.WithError(impErr).Warn("device import failed")
		code := "IMPORT_FAILED"
		if errors.Is(impErr, importer.ErrTooManyErrors) {
			code = "IMPORT_TOO_MANY_ERRORS"
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": impErr.Error(),
			"code":  code,
			"data":  sum,
		})
		return
	}

	log.WithFields(logrus.Fields{
		"inserted": sum.Inserted,
		"skipped":  sum.Skipped,
		"errors":   sum.Errors,
	}).Info("device import finished")

	writeJSON(w, http.StatusOK, map[string]any{
		"data": sum,
		"meta": map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func isXLSX(h *multipart.FileHeader) bool {
	return strings.HasSuffix(strings.ToLower(h.Filename), ".xlsx")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "code": code})
}
