package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"John Smith", "john_smith"},
		{"  JOHN   SMITH", "john_smith"},
		{"José  Álvarez-Núñez", "jose_alvarez_nunez"},
		{"O'Brien, Pat.", "o_brien_pat"},
		{"Venture Corp. Ltd", "venture_corp_ltd"},
		{"---", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestTokenSetRatio(t *testing.T) {
	assert.Equal(t, 100.0, TokenSetRatio("john_smith", "smith_john"))
	assert.Equal(t, 100.0, TokenSetRatio("lee_hsien_loong", "lee_hsien_loong_lee"))
	assert.InDelta(t, 90.0, TokenSetRatio("tan_ah_kow", "tan_ah_kaw"), 0.001)
	assert.Less(t, TokenSetRatio("alice_wong", "bob_lee"), 60.0)
	assert.Equal(t, 0.0, TokenSetRatio("", "bob_lee"))
}

func TestPolicy_TokenBoundary(t *testing.T) {
	// "tan_ah_kow" vs "tan_ah_kaw" scores exactly 90.
	atThreshold := TokenOnly(90)
	score, ok := atThreshold.Match("tan_ah_kow", "tan_ah_kaw")
	assert.True(t, ok)
	assert.InDelta(t, 90.0, score, 0.001)

	aboveScore := TokenOnly(90.5)
	_, ok = aboveScore.Match("tan_ah_kow", "tan_ah_kaw")
	assert.False(t, ok)
}

func TestPolicy_EditDistanceFallback(t *testing.T) {
	p := DefaultPolicy()

	// Transposed letters: token score ~88.9, edit distance 2.
	score, ok := p.Match("hongleong", "hongloeng")
	assert.True(t, ok, "a near-miss on a long key should merge")
	assert.InDelta(t, 88.89, score, 0.01)

	_, ok = p.Match("li_wei", "li_wen")
	assert.False(t, ok, "short keys never merge on distance alone")

	_, ok = TokenOnly(93).Match("hongleong", "hongloeng")
	assert.False(t, ok)
}

func TestPolicy_Similarity(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, 100.0, p.Similarity("john_smith", "john_smith"))
	assert.Equal(t, 0.0, p.Similarity("", "john_smith"))
	assert.Greater(t, p.Similarity("john_smith", "jon_smith"), p.Similarity("john_smith", "mary_tan"))
}
