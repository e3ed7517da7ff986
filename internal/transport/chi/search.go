package chi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/kailas-cloud/lumina/internal/domain"
	"github.com/kailas-cloud/lumina/internal/domain/search/filter"
	"github.com/kailas-cloud/lumina/internal/domain/search/request"
	searchuc "github.com/kailas-cloud/lumina/internal/usecase/search"
)

// Search handles POST /api/v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var body searchRequest
	if !decodeJSON(w, r, &body, defaultMaxJSONBodyBytes) {
		return
	}

	topK := s.defaultTopK
	if body.TopK != nil {
		topK = *body.TopK
	}
	rerank := s.defaultRerank
	if body.Rerank != nil {
		rerank = *body.Rerank
	}

	if topK > s.maxTopK {
		s.handleDomainError(w, domain.NewInvalidInput("top_k", fmt.Sprintf("must be at most %d", s.maxTopK)))
		return
	}
	req, err := request.New(body.Query, body.Filters.params(), topK, rerank)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results, meta, err := s.search.Search(ctx, &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, newSearchResponse(results, meta))
}

// SearchByImage handles POST /api/v1/search/image (multipart: file, top_k and filter fields).
func (s *Server) SearchByImage(w http.ResponseWriter, r *http.Request) {
	up, ok := s.readImageUpload(w, r)
	if !ok {
		return
	}

	params, topK, err := s.formSearchParams(r)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	req, err := request.New("", params, topK, false)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	results, err := s.search.SearchByImage(ctx, up.data, &req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, newSearchResponse(results, searchuc.Meta{}))
}

// formSearchParams reads top_k and filter fields from a parsed multipart form.
func (s *Server) formSearchParams(r *http.Request) (filter.Params, int, error) {
	var p filter.Params
	topK := s.defaultTopK

	if v := strings.TrimSpace(r.FormValue("top_k")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, 0, domain.NewInvalidInput("top_k", "must be an integer")
		}
		if n > s.maxTopK {
			return p, 0, domain.NewInvalidInput("top_k", fmt.Sprintf("must be at most %d", s.maxTopK))
		}
		topK = n
	}
	if v := strings.TrimSpace(r.FormValue("category")); v != "" {
		p.Category = &v
	}
	if v := strings.TrimSpace(r.FormValue("brand")); v != "" {
		p.Brand = &v
	}
	for _, name := range []string{"min_price", "max_price"} {
		v := strings.TrimSpace(r.FormValue(name))
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, 0, domain.NewInvalidInput(name, "must be a number")
		}
		if name == "min_price" {
			p.MinPrice = &f
		} else {
			p.MaxPrice = &f
		}
	}
	if v := strings.TrimSpace(r.FormValue("in_stock")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, 0, domain.NewInvalidInput("in_stock", "must be a boolean")
		}
		p.InStock = &b
	}
	return p, topK, nil
}

type upload struct {
	filename string
	data     []byte
}

// readImageUpload parses the multipart "file" part and checks it is an image.
// It writes the error response itself.
func (s *Server) readImageUpload(w http.ResponseWriter, r *http.Request) (upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codeRequestTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return upload{}, false
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid multipart form")
		return upload{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "file is required")
		return upload{}, false
	}
	defer func() { _ = file.Close() }()

	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		writeError(w, http.StatusBadRequest, codeUnsupportedMedia, "file must be an image")
		return upload{}, false
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "read upload")
		return upload{}, false
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, codeBadRequest, "file is empty")
		return upload{}, false
	}
	return upload{filename: header.Filename, data: data}, true
}
