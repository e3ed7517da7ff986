package chi

import (
	"net/http"
	"strings"
)

// Detect handles POST /api/v1/detect (multipart: file, repeated labels).
func (s *Server) Detect(w http.ResponseWriter, r *http.Request) {
	if s.detect == nil {
		writeError(w, http.StatusNotImplemented, codeNotImplemented, "detection is disabled")
		return
	}
	up, ok := s.readImageUpload(w, r)
	if !ok {
		return
	}

	res, err := s.detect.Detect(r.Context(), up.data, formLabels(r))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detectResponse{
		Status: "success",
		Meta:   detectMeta{Filename: up.filename, Model: res.Model},
		Data:   detectData{Detections: res.Detections, Count: res.Count()},
	})
}

// formLabels accepts both repeated labels fields and comma-separated values.
func formLabels(r *http.Request) []string {
	if r.MultipartForm == nil {
		return nil
	}
	var out []string
	for _, v := range r.MultipartForm.Value["labels"] {
		for _, l := range strings.Split(v, ",") {
			if l = strings.TrimSpace(l); l != "" {
				out = append(out, l)
			}
		}
	}
	return out
}
