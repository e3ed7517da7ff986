package chi

import (
	"encoding/base64"
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lumina/internal/domain"
	logpkg "github.com/kailas-cloud/lumina/internal/logger"
	cataloguc "github.com/kailas-cloud/lumina/internal/usecase/catalog"
)

const maxBatchBodyBytes = 64 << 20

// UpsertItem handles POST /api/v1/items.
func (s *Server) UpsertItem(w http.ResponseWriter, r *http.Request) {
	var body itemRequest
	if !decodeJSON(w, r, &body, s.maxUpload*2) {
		return
	}
	in, err := body.toInput()
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	id, err := s.catalog.Upsert(ctx, in)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusCreated, itemResponse{ID: id})
}

// UpsertItemsBatch handles POST /api/v1/items/batch.
// Items fail independently; the response reports each outcome by position.
func (s *Server) UpsertItemsBatch(w http.ResponseWriter, r *http.Request) {
	var body batchRequest
	if !decodeJSON(w, r, &body, maxBatchBodyBytes) {
		return
	}
	if len(body.Items) == 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest, "items must not be empty")
		return
	}

	resp := batchResponse{Results: make([]batchItemResult, len(body.Items))}
	inputs := make([]cataloguc.Input, 0, len(body.Items))
	positions := make([]int, 0, len(body.Items))
	for i, it := range body.Items {
		in, err := it.toInput()
		if err != nil {
			resp.Results[i] = batchItemResult{ID: it.ID, Status: "error", Error: safeDomainMessage(err)}
			continue
		}
		inputs = append(inputs, in)
		positions = append(positions, i)
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results, err := s.catalog.UpsertBatch(ctx, inputs)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	for j, res := range results {
		out := batchItemResult{ID: res.ID, Status: "ok"}
		if res.Err != nil {
			logpkg.FromContext(r.Context()).Warn("batch item failed", zap.String("id", res.ID), zap.Error(res.Err))
			out.Status = "error"
			out.Error = safeDomainMessage(res.Err)
		}
		resp.Results[positions[j]] = out
	}
	for _, res := range resp.Results {
		if res.Status == "ok" {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}

	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, resp)
}

// GetItem handles GET /api/v1/items/{id}.
func (s *Server) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.catalog.Get(r.Context(), gochi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{
		ID:      item.ID(),
		Vector:  item.Vector(),
		Payload: item.Payload(),
	})
}

// DeleteItem handles DELETE /api/v1/items/{id}.
func (s *Server) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.Delete(r.Context(), gochi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (it itemRequest) toInput() (cataloguc.Input, error) {
	in := cataloguc.Input{
		ID:      it.ID,
		Text:    it.Text,
		Vector:  it.Vector,
		Payload: it.Payload,
	}
	if it.ImageBase64 != "" {
		img, err := base64.StdEncoding.DecodeString(it.ImageBase64)
		if err != nil {
			return cataloguc.Input{}, domain.NewInvalidInput("image_base64", "not valid base64")
		}
		in.Image = img
	}
	return in, nil
}
