package acquire

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/library"
)

// Fingerprint keys concurrent acquisitions of the same track. The first
// external id wins; otherwise the normalized text is used, so spelling
// variants that normalize alike coalesce.
func Fingerprint(d domain.TrackDescriptor) string {
	var key string
	if len(d.IDs) > 0 {
		key = d.IDs[0].String()
	} else {
		key = library.Normalize(d.Artist) + "\x1f" + library.Normalize(d.Title) + "\x1f" + library.Normalize(d.Album)
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
