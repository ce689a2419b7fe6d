package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "punctuation", in: "Hello, World!", want: []string{"hello", "world"}},
		{name: "empty", in: "", want: []string{}},
		{name: "only separators", in: " -- !! ", want: []string{}},
		{name: "digits and underscore", in: "go_1.25 rocks", want: []string{"go_1", "25", "rocks"}},
		{name: "unicode letters", in: "Ça va, Zürich?", want: []string{"ça", "va", "zürich"}},
		{name: "apostrophe splits", in: "Don't stop", want: []string{"don", "t", "stop"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Tokenize(tt.in)
			if len(tt.want) == 0 {
				require.Empty(t, got)
				return
			}
			require.Equal(t, tt.want, got)
		})
	}
}

func TestTokenizeIdempotentOnNormalizedInput(t *testing.T) {
	t.Parallel()

	first := Tokenize("The QUICK brown-fox; jumps over 2 lazy_dogs.")
	second := Tokenize(strings.Join(first, " "))
	require.Equal(t, first, second)
	for _, tok := range second {
		require.NotEmpty(t, tok)
	}
}

func TestTermsKeepStreamPositions(t *testing.T) {
	t.Parallel()

	got := Terms("The rocket and the moon")
	require.Equal(t, []Token{
		{Term: "rocket", Position: 1},
		{Term: "moon", Position: 4},
	}, got)
}

func TestQueryTermsDeduplicates(t *testing.T) {
	t.Parallel()

	require.Equal(t, []string{"rocket", "launch"}, QueryTerms("Rocket the LAUNCH rocket"))
	require.Empty(t, QueryTerms("the and of"))
}

func TestIsStopWord(t *testing.T) {
	t.Parallel()

	require.True(t, IsStopWord("the"))
	require.True(t, IsStopWord("yourselves"))
	require.False(t, IsStopWord("rocket"))
	require.False(t, IsStopWord("The"), "stop words are matched after normalization only")
}

func FuzzTokenizeNoEmptyTokens(f *testing.F) {
	for _, seed := range []string{"Hello, World!", "", "a--b", "ünï cödé"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		for _, tok := range Tokenize(in) {
			if tok == "" {
				t.Fatalf("Tokenize(%q) returned an empty token", in)
			}
		}
	})
}
