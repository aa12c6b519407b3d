package match

import (
	"strings"

	"organlink/internal/domain"
)

// IsCompatible applies the stand-in clinical rule: organ types and blood
// groups must match, case-insensitively and ignoring surrounding whitespace.
// Pure domain logic - no I/O, no side effects.
func IsCompatible(donor *domain.Donor, recipient *domain.Recipient) bool {
	if !strings.EqualFold(strings.TrimSpace(donor.OrganType), strings.TrimSpace(recipient.Organ)) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(string(donor.BloodGroup)), strings.TrimSpace(string(recipient.BloodGroup)))
}
