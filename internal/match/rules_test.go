package match

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"organlink/internal/domain"
)

func TestIsCompatible(t *testing.T) {
	donor := func(organ, blood string) *domain.Donor {
		return &domain.Donor{OrganType: organ, BloodGroup: domain.BloodGroup(blood)}
	}
	recipient := func(organ, blood string) *domain.Recipient {
		return &domain.Recipient{Organ: organ, BloodGroup: domain.BloodGroup(blood)}
	}

	tests := []struct {
		name      string
		donor     *domain.Donor
		recipient *domain.Recipient
		want      bool
	}{
		{"exact match", donor("Kidney", "O+"), recipient("Kidney", "O+"), true},
		{"case-insensitive organ", donor("kidney", "O+"), recipient("KIDNEY", "O+"), true},
		{"case-insensitive blood group", donor("Kidney", "o+"), recipient("Kidney", "O+"), true},
		{"surrounding whitespace ignored", donor(" Kidney ", "O+ "), recipient("Kidney", " O+"), true},
		{"different organ", donor("Liver", "O+"), recipient("Kidney", "O+"), false},
		{"different blood group", donor("Kidney", "A+"), recipient("Kidney", "O+"), false},
		{"rh factor matters", donor("Kidney", "O+"), recipient("Kidney", "O-"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCompatible(tt.donor, tt.recipient))
		})
	}
}

func TestRandomScorerStaysInBounds(t *testing.T) {
	scorer := NewRandomScorer(42)
	for i := 0; i < 1000; i++ {
		score := scorer.Score(nil, nil)
		assert.GreaterOrEqual(t, score, ScoreMin)
		assert.LessOrEqual(t, score, ScoreMax)
	}
}

func TestFixedScorer(t *testing.T) {
	assert.Equal(t, 91, FixedScorer(91).Score(nil, nil))
}
