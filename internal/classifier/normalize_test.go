package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhrase(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "SoReNa", "sorena"},
		{"full width folds", "ＳＯＲＥＮＡ", "sorena"},
		{"half width kana folds", "ｿﾚﾅ", "ソレナ"},
		{"whitespace collapses", "それな   わかる", "それな わかる"},
		{"leading and trailing trimmed", "  それな\t", "それな"},
		{"tabs and newlines collapse", "a\t\nb", "a b"},
		{"empty stays empty", "", ""},
		{"whitespace only", " \t\n ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhrase(tt.in))
		})
	}
}

func TestNormalizePhraseIdempotent(t *testing.T) {
	inputs := []string{"ＳＯＲＥＮＡ", "それな   わかる", "Mixed ＷＩＤＴＨ text"}
	for _, in := range inputs {
		once := NormalizePhrase(in)
		assert.Equal(t, once, NormalizePhrase(once))
	}
}
