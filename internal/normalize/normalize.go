package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SegmentGuarda is the only segment classification that takes part in the quota.
const SegmentGuarda = "GUARDA"

var (
	reSpaces       = regexp.MustCompile(`\s+`)
	reNumericIDDot = regexp.MustCompile(`^\d+\.0$`)
	reNonAlnum     = regexp.MustCompile(`[^0-9A-Za-z]`)
	reNonRefChar   = regexp.MustCompile(`[^0-9A-Z]`)
)

// acceptedStatus lists validated spellings that do not start with VALID.
var acceptedStatus = map[string]struct{}{
	"VIGENT":   {},
	"VIGENTE":  {},
	"APROVAT":  {},
	"APROBADO": {},
	"APROBADA": {},
}

// StripAccents decomposes s and drops every combining mark.
func StripAccents(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Text is the comparison form used for every free-text field and header.
func Text(s string) string {
	return strings.TrimSpace(StripAccents(strings.ToUpper(StripAccents(s))))
}

func Segment(s string) string {
	return reSpaces.ReplaceAllString(Text(s), " ")
}

// TaxID normalizes NIF/DNI values coming from text or numeric cells.
func TaxID(s string) string {
	s = strings.TrimSpace(s)
	if reNumericIDDot.MatchString(s) {
		s = s[:len(s)-2]
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.Join(strings.Fields(s), "")
	s = reNonAlnum.ReplaceAllString(s, "")
	return strings.ToUpper(s)
}

// ParcelRef keeps only [0-9A-Z] so registry and delivery references join.
func ParcelRef(s string) string {
	return reNonRefChar.ReplaceAllString(strings.ToUpper(strings.TrimSpace(s)), "")
}

// IsValidated reports whether a parcel registration status counts as validated.
func IsValidated(status string) bool {
	st := Text(status)
	if strings.HasPrefix(st, "VALID") {
		return true
	}
	_, ok := acceptedStatus[st]
	return ok
}

// StatusValid is the one weighing status that counts against a quota.
const StatusValid = "VALID"

// IsValidDelivery reports whether a weighing status is exactly VALID.
// Pending or merely approved weighings do not count.
func IsValidDelivery(status string) bool {
	return Text(status) == StatusValid
}

// IsGuarda reports whether a raw segment value is exactly the GUARDA tier.
// "Guarda Superior" and similar do not match.
func IsGuarda(segment string) bool {
	return Segment(segment) == SegmentGuarda
}
