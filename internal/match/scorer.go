package match

import (
	"math/rand"
	"sync"

	"organlink/internal/domain"
)

// Score bounds for the placeholder scoring model.
const (
	ScoreMin = 85
	ScoreMax = 99
)

// Scorer computes a compatibility percentage for an already-compatible pair.
// This is the single seam for a real clinical scoring model; swapping it must
// not touch the engine.
type Scorer interface {
	Score(donor *domain.Donor, recipient *domain.Recipient) int
}

// RandomScorer draws uniformly from [ScoreMin, ScoreMax]. The stand-in for a
// clinical model.
type RandomScorer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomScorer(seed int64) *RandomScorer {
	return &RandomScorer{rng: rand.New(rand.NewSource(seed))}
}

func (s *RandomScorer) Score(_ *domain.Donor, _ *domain.Recipient) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ScoreMin + s.rng.Intn(ScoreMax-ScoreMin+1)
}

// FixedScorer always returns the same score. Test double.
type FixedScorer int

func (s FixedScorer) Score(_ *domain.Donor, _ *domain.Recipient) int { return int(s) }
