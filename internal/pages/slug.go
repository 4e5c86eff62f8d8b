package pages

import (
	"strings"
	"unicode"

	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
)

// Slugify lowercases s and joins its letter and digit runs with hyphens.
func Slugify(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

// MainSlug returns the slug of the city landing page, e.g. "san-jose-ca".
func MainSlug(loc *model.Locality) string {
	return Slugify(loc.Name + " " + loc.RegionCode)
}

// NeighborhoodSlug returns the slug of a neighborhood page, e.g. "austin-tx-hyde-park".
func NeighborhoodSlug(loc *model.Locality, neighborhood string) string {
	return Slugify(loc.Name + " " + loc.RegionCode + " " + neighborhood)
}
