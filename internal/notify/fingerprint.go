package notify

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/terminwatch/terminwatch/internal/domain"
)

// Fingerprint reduces a slot set to a stable hash of its identity tuples.
// Order of the input does not matter; duplicate identities collapse; raw
// text never participates. Two checks with the same bookable slots always
// produce the same fingerprint.
func Fingerprint(slots []domain.AppointmentSlot) string {
	if len(slots) == 0 {
		return ""
	}

	seen := make(map[string]struct{}, len(slots))
	identities := make([]string, 0, len(slots))
	for _, slot := range slots {
		id := slot.Identity()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		identities = append(identities, id)
	}
	sort.Strings(identities)

	sum := sha256.Sum256([]byte(strings.Join(identities, "\n")))
	return hex.EncodeToString(sum[:])
}
