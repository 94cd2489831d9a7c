package internal

import (
	"net/http"
	"strconv"
	"strings"

	"devicehub-api/internal/apperr"
)

func (s *Server) listDeviceTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.Catalog.ListTypes(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": types})
}

// listDeviceModels accepts an optional type_id filter.
func (s *Server) listDeviceModels(w http.ResponseWriter, r *http.Request) {
	var typeID int64
	if v := strings.TrimSpace(r.URL.Query().Get("type_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			s.writeAppError(w, r, apperr.InvalidField("type_id", "numeric", "invalid type_id"))
			return
		}
		typeID = id
	}

	list, err := s.Catalog.ListModels(r.Context(), typeID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

func (s *Server) deleteDeviceModel(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if err := s.Catalog.DeleteModel(r.Context(), id); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listOwners(w http.ResponseWriter, r *http.Request) {
	owners, err := s.Catalog.ListOwners(r.Context())
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": owners})
}
