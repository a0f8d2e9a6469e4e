package task

import (
	"encoding/hex"
	"strings"

	"github.com/minutemate/minutemate/engine/directory"
	"github.com/zeebo/blake3"
)

const fingerprintBytes = 16

// Fingerprint derives the de-duplication key from the canonical summary, the
// resolved owner id and the team. Empty owner or team hash as absent.
func Fingerprint(summary, ownerID, team string) string {
	h := blake3.New()
	writeField(h, directory.Fold(summary))
	writeField(h, ownerID)
	writeField(h, directory.Fold(team))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:fingerprintBytes])
}

func writeField(h *blake3.Hasher, v string) {
	if v == "" {
		_, _ = h.Write([]byte{0})
		return
	}
	_, _ = h.Write([]byte{1})
	_, _ = h.WriteString(strings.TrimSpace(v))
	_, _ = h.Write([]byte{0})
}
