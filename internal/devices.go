package internal

import (
	"net/http"

	"devicehub-api/internal/models"
)

func (s *Server) listDevices(w http.ResponseWriter, r *http.Request) {
	f, err := parseDeviceFilter(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	p, err := parsePage(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	page, err := s.Devices.ListDevices(r.Context(), f, p)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) getDevice(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	v, err := s.Devices.GetDeviceDetails(r.Context(), id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) createDevice(w http.ResponseWriter, r *http.Request) {
	var in models.DeviceInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	d, err := s.Devices.CreateDevice(r.Context(), in)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.writeDeviceView(w, r, d.ID, http.StatusCreated)
}

func (s *Server) updateDevice(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	var in models.DeviceInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if _, err := s.Devices.UpdateDevice(r.Context(), id, in); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.writeDeviceView(w, r, id, http.StatusOK)
}

// writeDeviceView answers a write with the joined view of the saved device.
func (s *Server) writeDeviceView(w http.ResponseWriter, r *http.Request, id int64, status int) {
	v, err := s.Devices.GetDeviceDetails(r.Context(), id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, status, v)
}

func (s *Server) deleteDevice(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if err := s.Devices.DeleteDevice(r.Context(), id); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listDeviceAssignments(w http.ResponseWriter, r *http.Request) {
	id, err := parsePathID(r, "id")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	if _, err := s.Devices.GetDeviceDetails(r.Context(), id); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.writeAssignments(w, r, id)
}

func (s *Server) listAssignments(w http.ResponseWriter, r *http.Request) {
	s.writeAssignments(w, r, 0)
}

func (s *Server) writeAssignments(w http.ResponseWriter, r *http.Request, deviceID int64) {
	f, err := parseAssignmentFilter(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	p, err := parsePage(r)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	page, err := s.Devices.ListAssignmentHistory(r.Context(), deviceID, f, p)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) getOpenAssignment(w http.ResponseWriter, r *http.Request) {
	userID, err := parsePathID(r, "userId")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	id, err := parsePathID(r, "id")
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	a, err := s.Devices.GetOpenAssignmentForUser(r.Context(), userID, id)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
