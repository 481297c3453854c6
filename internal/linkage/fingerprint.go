// Package linkage computes the cross-source fingerprint spec.md §4.6
// defines and maintains the in-memory linkage table that groups records
// from different sites describing the same physical property.
package linkage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/idkny/sale-sofia/internal/core/domain"
)

var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalize lowercases, strips diacritics and collapses whitespace, per
// the invariant fingerprint(normalize(x)) = fingerprint(x).
func normalize(s string) string {
	folded, _, err := transform.String(stripDiacritics, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(folded), " ")
}

// Fingerprint returns the 16-hex-character identity of a listing's
// physical attributes, independent of source.
func Fingerprint(neighborhood string, squareMeters float64, rooms, floor int, buildingType string) string {
	sqm := ""
	if squareMeters != 0 {
		sqm = fmt.Sprintf("%d", int64(math.Round(squareMeters)))
	}

	parts := strings.Join([]string{
		normalize(neighborhood),
		sqm,
		fmt.Sprintf("%d", rooms),
		fmt.Sprintf("%d", floor),
		normalize(buildingType),
	}, "|")

	sum := sha256.Sum256([]byte(parts))
	return hex.EncodeToString(sum[:])[:16]
}

// FingerprintRecord fingerprints a ListingRecord's physical attributes.
func FingerprintRecord(r domain.ListingRecord) string {
	return Fingerprint(r.Neighborhood, r.SquareMeters, r.Rooms, r.Floor, r.BuildingType)
}

// DiscrepancyPct is (max-min)/min * 100.
func DiscrepancyPct(min, max float64) float64 {
	if min == 0 {
		return 0
	}
	return (max - min) / min * 100
}
