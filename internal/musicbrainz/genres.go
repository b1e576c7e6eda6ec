package musicbrainz

import (
	"sort"
	"strings"
)

// knownGenres filters folksonomy tags down to real genre names, dropping
// user tags like "seen live" or "my favorites". Lowercase.
var knownGenres = map[string]bool{
	// broad
	"rock": true, "pop": true, "electronic": true, "hip hop": true,
	"jazz": true, "classical": true, "metal": true, "punk": true,
	"folk": true, "country": true, "blues": true, "soul": true,
	"funk": true, "reggae": true, "latin": true, "r&b": true,
	"gospel": true, "disco": true, "ska": true, "world": true,
	// rock
	"alternative rock": true, "indie rock": true, "hard rock": true,
	"progressive rock": true, "psychedelic rock": true, "art rock": true,
	"garage rock": true, "surf rock": true, "glam rock": true,
	"soft rock": true, "southern rock": true, "stoner rock": true,
	"krautrock": true, "math rock": true, "post-rock": true,
	"noise rock": true, "space rock": true, "blues rock": true,
	"folk rock": true, "country rock": true, "jazz rock": true,
	"punk rock": true,
	// metal
	"heavy metal": true, "death metal": true, "black metal": true,
	"thrash metal": true, "doom metal": true, "power metal": true,
	"symphonic metal": true, "progressive metal": true, "gothic metal": true,
	"nu metal": true, "sludge metal": true, "post-metal": true,
	"metalcore": true, "deathcore": true, "grindcore": true,
	"speed metal": true, "folk metal": true, "industrial metal": true,
	// punk
	"hardcore punk": true, "post-punk": true, "pop punk": true,
	"anarcho-punk": true, "crust punk": true, "melodic hardcore": true,
	"emo": true, "screamo": true, "grunge": true, "riot grrrl": true,
	// electronic
	"techno": true, "house": true, "trance": true, "ambient": true,
	"drum and bass": true, "dubstep": true, "idm": true, "industrial": true,
	"synthpop": true, "new wave": true, "darkwave": true, "ebm": true,
	"trip hop": true, "downtempo": true, "breakbeat": true, "electro": true,
	"uk garage": true, "deep house": true, "tech house": true,
	"minimal techno": true, "acid house": true, "progressive house": true,
	"progressive trance": true, "psytrance": true, "hardcore techno": true,
	"gabber": true, "jungle": true, "liquid funk": true, "neurofunk": true,
	"future bass": true, "chillwave": true, "vaporwave": true,
	"synthwave": true, "retrowave": true, "lo-fi": true, "glitch": true,
	"noise": true, "dark ambient": true, "drone": true,
	// hip hop
	"rap": true, "trap": true, "conscious hip hop": true,
	"gangsta rap": true, "boom bap": true, "lo-fi hip hop": true,
	"cloud rap": true, "grime": true, "uk hip hop": true,
	"abstract hip hop": true,
	// jazz
	"bebop": true, "cool jazz": true, "free jazz": true, "fusion": true,
	"smooth jazz": true, "acid jazz": true, "latin jazz": true,
	"big band": true, "swing": true, "bossa nova": true,
	// classical
	"baroque": true, "romantic": true, "modern classical": true,
	"contemporary classical": true, "opera": true, "chamber music": true,
	"orchestral": true, "choral": true, "minimalism": true,
	// folk/country
	"bluegrass": true, "americana": true, "celtic": true, "neofolk": true,
	"freak folk": true, "indie folk": true, "singer-songwriter": true,
	"acoustic": true,
	// soul/funk/r&b
	"neo-soul": true, "motown": true, "northern soul": true,
	"contemporary r&b": true, "new jack swing": true, "quiet storm": true,
	"p-funk": true,
	// reggae/caribbean
	"dub": true, "dancehall": true, "rocksteady": true,
	"roots reggae": true, "ragga": true, "soca": true, "calypso": true,
	// african/world
	"afrobeat": true, "afropop": true, "highlife": true, "soukous": true,
	"mbalax": true, "fado": true, "flamenco": true, "ranchera": true,
	"cumbia": true, "salsa": true, "merengue": true, "bachata": true,
	"reggaeton": true, "mpb": true, "samba": true, "forró": true,
	"tango": true,
	// pop variants
	"indie pop": true, "dream pop": true, "shoegaze": true,
	"noise pop": true, "power pop": true, "baroque pop": true,
	"chamber pop": true, "electropop": true, "dance-pop": true,
	"synth-pop": true, "art pop": true, "teen pop": true, "k-pop": true,
	"j-pop": true, "c-pop": true, "europop": true, "britpop": true,
	"jangle pop": true,
	// other
	"experimental": true, "avant-garde": true, "spoken word": true,
	"soundtrack": true, "new age": true, "easy listening": true,
	"lounge": true, "exotica": true, "post-industrial": true,
	"martial industrial": true,
}

// namedCount is a genre or tag entry as the API returns it.
type namedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// collectGenres merges genre lists from a release and its release group,
// most voted first. When no official genres exist, folksonomy tags filtered
// by the known-genre set serve as fallback.
func collectGenres(genreLists, tagLists [][]namedCount) []string {
	counts := make(map[string]int)

	for _, list := range genreLists {
		for _, g := range list {
			name := strings.TrimSpace(g.Name)
			if name != "" {
				counts[name] += g.Count
			}
		}
	}

	if len(counts) == 0 {
		for _, list := range tagLists {
			for _, tag := range list {
				name := strings.ToLower(strings.TrimSpace(tag.Name))
				if knownGenres[name] && tag.Count > 0 {
					counts[name] += tag.Count
				}
			}
		}
	}

	genres := make([]string, 0, len(counts))
	for name := range counts {
		genres = append(genres, name)
	}
	sort.Slice(genres, func(i, j int) bool {
		if counts[genres[i]] != counts[genres[j]] {
			return counts[genres[i]] > counts[genres[j]]
		}
		return genres[i] < genres[j]
	})

	return genres
}
