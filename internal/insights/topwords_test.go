package insights

import (
	"slices"
	"testing"
)

func TestTopWords(t *testing.T) {
	t.Parallel()

	t.Run("frequency ordering with alphabetical ties", func(t *testing.T) {
		t.Parallel()
		texts := []string{
			"planning planning planning dinner dinner dinner",
			"movie movie movie",
		}
		got := TopWords(texts, 3)
		want := []string{"dinner", "movie", "planning"}
		if !slices.Equal(got, want) {
			t.Errorf("TopWords() = %v, want %v", got, want)
		}
	})

	t.Run("stopwords filtered in both languages", func(t *testing.T) {
		t.Parallel()
		got := TopWords([]string{"yaar really gonna omitted karenge weekend weekend weekend"}, 5)
		want := []string{"weekend"}
		if !slices.Equal(got, want) {
			t.Errorf("TopWords() = %v, want %v", got, want)
		}
	})

	t.Run("low letter diversity rejected", func(t *testing.T) {
		t.Parallel()
		got := TopWords([]string{"haahaahaa haahaahaa haahaahaa concert concert concert"}, 5)
		want := []string{"concert"}
		if !slices.Equal(got, want) {
			t.Errorf("TopWords() = %v, want %v", got, want)
		}
	})

	t.Run("short words need three occurrences", func(t *testing.T) {
		t.Parallel()
		// "trip" is four chars, seen twice: skipped by the quality pick,
		// but recovered by the plain fallback when nothing qualifies.
		got := TopWords([]string{"trip trip"}, 3)
		want := []string{"trip"}
		if !slices.Equal(got, want) {
			t.Errorf("TopWords() = %v, want %v", got, want)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()
		if got := TopWords(nil, 5); len(got) != 0 {
			t.Errorf("TopWords(nil) = %v, want empty", got)
		}
	})
}
