package result

import "sort"

// Candidate is a vector index hit before reranking.
type Candidate struct {
	id          string
	vectorScore float64
	payload     map[string]any
}

// NewCandidate creates a candidate.
func NewCandidate(id string, vectorScore float64, payload map[string]any) Candidate {
	return Candidate{id: id, vectorScore: vectorScore, payload: payload}
}

// ID returns the item identifier.
func (c Candidate) ID() string { return c.id }

// VectorScore returns the similarity reported by the index (higher is closer).
func (c Candidate) VectorScore() float64 { return c.vectorScore }

// Payload returns the item attributes.
func (c Candidate) Payload() map[string]any { return c.payload }

// Ranked is a final search hit.
type Ranked struct {
	id          string
	finalScore  float64
	vectorScore float64
	payload     map[string]any
}

// NewRanked creates a ranked result.
func NewRanked(id string, finalScore, vectorScore float64, payload map[string]any) Ranked {
	return Ranked{id: id, finalScore: finalScore, vectorScore: vectorScore, payload: payload}
}

// FromCandidate ranks a candidate by its vector score alone.
func FromCandidate(c Candidate) Ranked {
	return Ranked{id: c.id, finalScore: c.vectorScore, vectorScore: c.vectorScore, payload: c.payload}
}

// ID returns the item identifier.
func (r Ranked) ID() string { return r.id }

// FinalScore returns the score the result is ordered by.
func (r Ranked) FinalScore() float64 { return r.finalScore }

// VectorScore returns the retained index similarity.
func (r Ranked) VectorScore() float64 { return r.vectorScore }

// Payload returns the item attributes.
func (r Ranked) Payload() map[string]any { return r.payload }

// SortCandidates orders by vector score desc, then id asc.
func SortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].vectorScore != cs[j].vectorScore {
			return cs[i].vectorScore > cs[j].vectorScore
		}
		return cs[i].id < cs[j].id
	})
}

// SortRanked orders by final score desc, then id asc.
func SortRanked(rs []Ranked) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].finalScore != rs[j].finalScore {
			return rs[i].finalScore > rs[j].finalScore
		}
		return rs[i].id < rs[j].id
	})
}

// VectorOnly converts candidates to results ordered by vector score, truncated to topK.
func VectorOnly(cs []Candidate, topK int) []Ranked {
	out := make([]Ranked, len(cs))
	for i, c := range cs {
		out[i] = FromCandidate(c)
	}
	SortRanked(out)
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}
