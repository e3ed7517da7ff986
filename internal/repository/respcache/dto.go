package respcache

import (
	"time"

	"github.com/kailas-cloud/lumina/internal/domain/search/result"
)

type entryDTO struct {
	Key       string      `json:"key"`
	Value     []rankedDTO `json:"value"`
	ExpiresAt int64       `json:"expires_at"`
}

type rankedDTO struct {
	ID          string         `json:"id"`
	FinalScore  float64        `json:"final_score"`
	VectorScore float64        `json:"vector_score"`
	Payload     map[string]any `json:"payload"`
}

func newEntryDTO(key string, value []result.Ranked, expiresAt time.Time) entryDTO {
	rs := make([]rankedDTO, len(value))
	for i, r := range value {
		rs[i] = rankedDTO{
			ID:          r.ID(),
			FinalScore:  r.FinalScore(),
			VectorScore: r.VectorScore(),
			Payload:     r.Payload(),
		}
	}
	return entryDTO{Key: key, Value: rs, ExpiresAt: expiresAt.UnixNano()}
}

func (e entryDTO) toResults() []result.Ranked {
	out := make([]result.Ranked, len(e.Value))
	for i, r := range e.Value {
		out[i] = result.NewRanked(r.ID, r.FinalScore, r.VectorScore, r.Payload)
	}
	return out
}
