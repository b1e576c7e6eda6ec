package genre

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hip-Hop", "hip hop"},
		{"hiphop", "hip hop"},
		{"R&B", "r&b"},
		{"Drum'n'Bass", "drum and bass"},
		{"Alt-Rock", "alternative rock"},
		{"Synth-Pop", "synthpop"},
		{"shoegaze", "shoegaze"},
		{" dream pop ", "dream pop"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Canonical(tt.in), tt.in)
	}
}

func TestNormalize_DeduplicatesVariants(t *testing.T) {
	got := Normalize([]string{"Hip-Hop", "rap", "hip hop", "r&b"})
	assert.Equal(t, []string{"hip hop", "r&b"}, got)
}

func TestNormalize_Empty(t *testing.T) {
	assert.Nil(t, Normalize(nil))
	assert.Nil(t, Normalize([]string{"", "  "}))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "progressive-rock", Slugify("Progressive Rock"))
	assert.Equal(t, "r-b", Slugify("R&B"))
	assert.Equal(t, "motorhead", Slugify("Mötörhead"))
}
