package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "captain annotation", in: "Virat Kohli (c)", want: "Virat Kohli"},
		{name: "keeper marker", in: "†M.S. Dhoni", want: "MS Dhoni"},
		{name: "marker and annotation", in: "† Rishabh Pant (wk)", want: "Rishabh Pant"},
		{name: "diacritics", in: "Dasun Shanaka Jayasūriya", want: "Dasun Shanaka Jayasuriya"},
		{name: "title segment", in: "India vs Pakistan, 19th Match", want: "India vs Pakistan 19th Match"},
		{name: "whitespace", in: "  Jos   Buttler\t\n", want: "Jos Buttler"},
		{name: "empty", in: "", want: ""},
		{name: "pure punctuation", in: "!?.,;:-", want: ""},
		{name: "pure unicode", in: "†★☆", want: ""},
		{name: "non-latin script", in: "विराट", want: ""},
		{name: "unbalanced paren", in: "Shai Hope (c", want: "Shai Hope c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Virat Kohli (c)",
		"†M.S. Dhoni",
		"",
		"  ",
		"()",
		"(a)(b) c (d",
		"Ñoño  Müller—Smith",
		"†",
		" x y",
		"a_b-c",
	}

	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestStripParens(t *testing.T) {
	assert.Equal(t, "Virat Kohli", StripParens("Virat Kohli (c)"))
	assert.Equal(t, "A B", StripParens("A (x) B"))
	assert.Equal(t, "AB", StripParens("A(x)(y)B"))
	assert.Equal(t, "no parens", StripParens("no parens"))
}

func TestStripMarker(t *testing.T) {
	assert.Equal(t, "MS Dhoni", StripMarker("†  MS Dhoni"))
	assert.Equal(t, "MS Dhoni †", StripMarker("MS Dhoni †"))
	assert.Equal(t, " †MS", StripMarker(" †MS"))
}

func TestFoldASCII(t *testing.T) {
	assert.Equal(t, "Jose", FoldASCII("José"))
	assert.Equal(t, "fi", FoldASCII("ﬁ"))
	assert.Equal(t, "MS", FoldASCII("†MS"))
	assert.Equal(t, "", FoldASCII("क"))
}

func TestStripSymbols(t *testing.T) {
	assert.Equal(t, "MS Dhoni", StripSymbols("M.S. Dhoni"))
	assert.Equal(t, "ab c", StripSymbols("a_b c!"))
	assert.Equal(t, "a\tb", StripSymbols("a\tb"))
}

func TestCollapseSpace(t *testing.T) {
	assert.Equal(t, "a b c", CollapseSpace("  a \t b\n\nc  "))
	assert.Equal(t, "", CollapseSpace(" \t\n"))
}

func TestCleanKeepsPunctuation(t *testing.T) {
	assert.Equal(t, "Kensington Oval, Bridgetown", Clean("  Kensington  Oval,\nBridgetown "))
	assert.Equal(t, "Top-order Batter", Clean("Top-order Batter"))
}
