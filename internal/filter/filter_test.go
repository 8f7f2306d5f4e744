package filter

import (
	"reflect"
	"testing"

	"github.com/nao1215/relcrawl/internal/model"
)

func subtitles(codes ...string) map[string]any {
	infos := make([]any, len(codes))
	for i, c := range codes {
		infos[i] = map[string]any{"LanguageCodeName": c}
	}
	return map[string]any{"subtitleInfos": infos}
}

// TestRelevanceKeep tests each rule of the relevance predicate.
func TestRelevanceKeep(t *testing.T) {
	t.Parallel()

	f := New(Options{
		Keywords:             []string{"georgescu", "Nicusor Dan", "  "},
		TargetLanguage:       "ro",
		SubtitleLanguage:     "ron-RO",
		MaxSubtitleLanguages: 5,
	})

	tests := []struct {
		name string
		item model.Item
		want bool
	}{
		{name: "keyword substring", item: model.Item{"desc": "georgescu speech"}, want: true},
		{name: "keyword is case-insensitive", item: model.Item{"desc": "GEORGESCU rally"}, want: true},
		{name: "multi-word keyword", item: model.Item{"desc": "vote nicusor dan"}, want: true},
		{name: "no keyword", item: model.Item{"desc": "cats video"}, want: false},
		{name: "missing description", item: model.Item{"id": "1"}, want: false},
		{name: "target language", item: model.Item{"desc": "cats", "textLanguage": "ro"}, want: true},
		{name: "other language", item: model.Item{"desc": "cats", "textLanguage": "en"}, want: false},
		{name: "subtitle language under cap", item: model.Item{"video": subtitles("ron-RO", "eng-US")}, want: true},
		{name: "subtitle language at cap", item: model.Item{"video": subtitles("ron-RO", "a", "b", "c", "d")}, want: false},
		{name: "subtitle language absent", item: model.Item{"video": subtitles("eng-US")}, want: false},
		{name: "precomputed subtitle list", item: model.Item{"subtitleLanguages": []any{"ron-RO"}}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := f.Keep(tt.item); got != tt.want {
				t.Errorf("Keep(%v) = %v, want %v", tt.item, got, tt.want)
			}
		})
	}
}

// TestRelevanceDisabledRules tests that unset language rules never match.
func TestRelevanceDisabledRules(t *testing.T) {
	t.Parallel()

	f := New(Options{Keywords: []string{"alegeri"}})

	if f.Keep(model.Item{"textLanguage": "", "desc": "cats"}) {
		t.Error("empty target language should not match empty textLanguage")
	}
	if f.Keep(model.Item{"video": subtitles("ron-RO")}) {
		t.Error("subtitle rule should be disabled without a subtitle language")
	}
}

// TestRelevanceNoCap tests that a non-positive cap admits any track count.
func TestRelevanceNoCap(t *testing.T) {
	t.Parallel()

	f := New(Options{SubtitleLanguage: "ron-RO"})
	if !f.Keep(model.Item{"video": subtitles("ron-RO", "a", "b", "c", "d", "e", "f")}) {
		t.Error("expected match without a cap")
	}
}

// TestRelevanceReasons tests rule reporting.
func TestRelevanceReasons(t *testing.T) {
	t.Parallel()

	f := New(Options{Keywords: []string{"romania"}, TargetLanguage: "ro"})
	got := f.Reasons(model.Item{"desc": "Romania", "textLanguage": "ro"})
	want := []string{RuleKeyword, RuleLanguage}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Reasons() = %v, want %v", got, want)
	}
	if got := f.Reasons(model.Item{"desc": "cats"}); got != nil {
		t.Errorf("expected no reasons, got %v", got)
	}
}

// TestRelevanceKeywordsNormalized tests keyword folding and deduplication.
func TestRelevanceKeywordsNormalized(t *testing.T) {
	t.Parallel()

	f := New(Options{Keywords: []string{"Ponta", "ponta", "", "Potra"}})
	want := []string{"ponta", "potra"}
	if got := f.Keywords(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keywords() = %v, want %v", got, want)
	}
}

// TestSubtitleLanguages tests extraction from both representations.
func TestSubtitleLanguages(t *testing.T) {
	t.Parallel()

	it := model.Item{"video": map[string]any{"subtitleInfos": []any{
		map[string]any{"LanguageCodeName": "ron-RO"},
		"garbage",
		map[string]any{"Other": "x"},
	}}}
	if got := SubtitleLanguages(it); !reflect.DeepEqual(got, []string{"ron-RO"}) {
		t.Errorf("SubtitleLanguages() = %v", got)
	}
	if got := SubtitleLanguages(model.Item{}); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
