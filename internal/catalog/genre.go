package catalog

import "strings"

// genreMap folds lookup-service sub-genres into the top-level names written
// to tags. Keys are lower-case.
var genreMap = map[string]string{
	"rock":              "Rock",
	"alternative":       "Rock",
	"alternative rock":  "Rock",
	"indie rock":        "Rock",
	"hard rock":         "Rock",
	"punk":              "Rock",
	"grunge":            "Rock",
	"metal":             "Metal",
	"heavy metal":       "Metal",
	"death metal":       "Metal",
	"metalcore":         "Metal",
	"pop":               "Pop",
	"indie pop":         "Pop",
	"synthpop":          "Pop",
	"synth-pop":         "Pop",
	"dance pop":         "Pop",
	"k-pop":             "Pop",
	"hip hop":           "Hip-Hop",
	"hip-hop/rap":       "Hip-Hop",
	"rap":               "Hip-Hop",
	"trap":              "Hip-Hop",
	"r&b":               "R&B",
	"r&b/soul":          "R&B",
	"soul":              "R&B",
	"funk":              "R&B",
	"electronic":        "Electronic",
	"electronica":       "Electronic",
	"dance":             "Electronic",
	"house":             "Electronic",
	"techno":            "Electronic",
	"trance":            "Electronic",
	"drum and bass":     "Electronic",
	"disco":             "Electronic",
	"latin":             "Latin",
	"reggaeton":         "Latin",
	"salsa":             "Latin",
	"bossa nova":        "Latin",
	"regional mexican":  "Regional Mexican",
	"country":           "Country",
	"americana":         "Country",
	"jazz":              "Jazz",
	"vocal jazz":        "Jazz",
	"classical":         "Classical",
	"opera":             "Classical",
	"folk":              "Folk",
	"singer/songwriter": "Folk",
	"reggae":            "Reggae",
	"ska":               "Reggae",
	"blues":             "Blues",
	"soundtrack":        "Soundtrack",
}

// canonicalGenre maps a service genre onto its top-level name. Unknown
// genres pass through trimmed.
func canonicalGenre(name string) string {
	name = strings.TrimSpace(name)
	if mapped, ok := genreMap[strings.ToLower(name)]; ok {
		return mapped
	}
	return name
}
