package simulate

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/okian/juryline/internal/domain/model"
)

const (
	harshnessSpread = 0.1
	noiseSpread     = 0.05
)

// criterionSpec is a criterion as created through the API.
type criterionSpec struct {
	Name      string  `json:"name"`
	ScaleMin  float64 `json:"scale_min"`
	ScaleMax  float64 `json:"scale_max"`
	Weight    float64 `json:"weight"`
	SortOrder int     `json:"sort_order"`
}

var defaultCriteria = []criterionSpec{
	{Name: "Impact", ScaleMin: 1, ScaleMax: 10, Weight: 2, SortOrder: 1},
	{Name: "Design", ScaleMin: 0, ScaleMax: 5, Weight: 1, SortOrder: 2},
	{Name: "Execution", ScaleMin: 0, ScaleMax: 10, Weight: 1.5, SortOrder: 3},
}

// scenario is the synthetic event: participants with a hidden quality and
// judges with a personal harshness offset.
type scenario struct {
	name         string
	participants []string
	judges       []string
	quality      map[string]float64
	harshness    map[string]float64
	rng          *rand.Rand
}

func newScenario(cfg Config) *scenario {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	s := &scenario{
		name:      "simulated-" + uuid.NewString(),
		quality:   make(map[string]float64, cfg.Submissions),
		harshness: make(map[string]float64, cfg.Judges),
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	for range cfg.Submissions {
		id := uuid.NewString()
		s.participants = append(s.participants, id)
		s.quality[id] = s.rng.Float64()
	}
	for range cfg.Judges {
		id := uuid.NewString()
		s.judges = append(s.judges, id)
		s.harshness[id] = (s.rng.Float64()*2 - 1) * harshnessSpread
	}
	return s
}

// scores returns a full score set for one judge's review of one participant.
func (s *scenario) scores(criteria []model.Criterion, participantID, judgeID string) map[string]float64 {
	out := make(map[string]float64, len(criteria))
	for _, c := range criteria {
		level := s.quality[participantID] + s.harshness[judgeID] + (s.rng.Float64()*2-1)*noiseSpread
		level = math.Max(0, math.Min(1, level))
		v := c.ScaleMin + level*(c.ScaleMax-c.ScaleMin)
		out[c.ID] = math.Round(v*100) / 100
	}
	return out
}
