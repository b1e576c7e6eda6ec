package genre

import "strings"

// canonicalAliases maps slugified variant spellings to one canonical name.
// MusicBrainz genres are already lowercase; tag-sourced genres arrive in
// whatever casing the ripper used, so lookups go through Slugify first.
var canonicalAliases = map[string]string{
	// Electronic
	"electronica":             "electronic",
	"edm":                     "electronic",
	"idm":                     "idm",
	"intelligent-dance-music": "idm",
	"drum-n-bass":             "drum and bass",
	"drum-and-bass":           "drum and bass",
	"dnb":                     "drum and bass",
	"jungle":                  "jungle",
	"synth-pop":               "synthpop",
	"synthpop":                "synthpop",
	"electro-pop":             "electropop",
	"uk-garage":               "uk garage",
	"ukg":                     "uk garage",
	"lofi":                    "lo-fi",
	"lo-fi":                   "lo-fi",
	"trip-hop":                "trip hop",

	// Rock
	"alt-rock":     "alternative rock",
	"alternative":  "alternative rock",
	"prog-rock":    "progressive rock",
	"prog":         "progressive rock",
	"psychedelic":  "psychedelic rock",
	"psych-rock":   "psychedelic rock",
	"post-rock":    "post-rock",
	"indie":        "indie rock",
	"garage-rock":  "garage rock",
	"classic-rock": "rock",

	// Hip hop
	"hip-hop": "hip hop",
	"hiphop":  "hip hop",
	"rap":     "hip hop",

	// Soul and R&B
	"r-b":      "r&b",
	"rnb":      "r&b",
	"neo-soul": "neo-soul",
	"neosoul":  "neo-soul",

	// Jazz
	"free-jazz":   "free jazz",
	"jazz-fusion": "jazz fusion",
	"fusion":      "jazz fusion",

	// Metal
	"heavy-metal": "metal",
	"black-metal": "black metal",
	"death-metal": "death metal",
	"doom":        "doom metal",

	// Folk and country
	"singer-songwriter": "singer-songwriter",
	"folk-rock":         "folk rock",
	"alt-country":       "alternative country",
	"americana":         "americana",
}

// Canonical returns the canonical spelling for a genre name. Unknown
// genres come back trimmed but otherwise untouched.
func Canonical(name string) string {
	if canon, ok := canonicalAliases[Slugify(name)]; ok {
		return canon
	}
	return strings.TrimSpace(name)
}

// Normalize canonicalizes a genre list and removes duplicates, keeping
// the first occurrence's position.
func Normalize(names []string) []string {
	if len(names) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		canon := Canonical(name)
		if canon == "" {
			continue
		}
		key := Slugify(canon)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, canon)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
