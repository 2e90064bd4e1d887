package normalize

import (
	"regexp"
	"strings"
)

// UnknownVarietyCode is used when a variety name has no letters at all.
const UnknownVarietyCode = "UNK"

var (
	reXarello    = regexp.MustCompile(`XAREL\s*[.·•‧\-]?\s*LO`)
	rePinotNoir  = regexp.MustCompile(`PINOT\s*-\s*NOIR`)
	reNonLetter  = regexp.MustCompile(`[^A-Z ]`)
	reNonLetterS = regexp.MustCompile(`[^A-Z]`)
)

var varietyCodes = buildVarietyCodes(map[string]string{
	"CHARDONNAY":     "CHB",
	"GARNATXA NEGRA": "GAN",
	"MACABEU":        "MAB",
	"MONASTRELL":     "MTN",
	"PARELLADA":      "PAB",
	"PINOT NOIR":     "PTN",
	"SUBIRAT PARENT": "SPB",
	"TREPAT":         "TRN",
	"XARELLO":        "XAB",
})

func buildVarietyCodes(base map[string]string) map[string]string {
	out := make(map[string]string, len(base))
	for name, code := range base {
		out[Variety(name)] = code
	}
	return out
}

// Variety normalizes a grape variety name and collapses known spelling variants.
func Variety(s string) string {
	v := Text(s)
	v = reXarello.ReplaceAllString(v, "XARELLO")
	v = rePinotNoir.ReplaceAllString(v, "PINOT NOIR")
	return v
}

// VarietyCode maps a variety name to its 3-letter code.
func VarietyCode(name string) string {
	base := reNonLetter.ReplaceAllString(Variety(name), " ")
	base = strings.Join(strings.Fields(base), " ")
	if code, ok := varietyCodes[base]; ok {
		return code
	}
	return derivedVarietyCode(base)
}

func derivedVarietyCode(name string) string {
	letters := reNonLetterS.ReplaceAllString(name, "")
	if letters == "" {
		return UnknownVarietyCode
	}
	if len(letters) > 3 {
		letters = letters[:3]
	}
	return letters
}

// BuildKey returns the VARTIP key "<code>-<normalized tax id>".
func BuildKey(variety, taxID string) string {
	return VarietyCode(variety) + "-" + TaxID(taxID)
}
