package filter

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/nao1215/relcrawl/internal/model"
)

// Rule names reported by Reasons.
const (
	RuleKeyword  = "keyword"
	RuleLanguage = "language"
	RuleSubtitle = "subtitle"
)

// subtitleLanguageField is the language code inside each subtitle track.
const subtitleLanguageField = "LanguageCodeName"

// Options configures a Relevance filter.
type Options struct {
	// Keywords are matched case-insensitively as substrings of the description.
	Keywords []string

	// TargetLanguage is compared with the item's textLanguage field.
	// Empty disables the rule.
	TargetLanguage string

	// SubtitleLanguage must appear among the item's subtitle languages.
	// Empty disables the rule.
	SubtitleLanguage string

	// MaxSubtitleLanguages caps the subtitle track count for the subtitle
	// rule. An item with that many tracks or more is treated as a multi-dub
	// upload rather than content in the target language. Zero or negative
	// removes the cap.
	MaxSubtitleLanguages int
}

// Relevance is a stateless predicate over item fields.
type Relevance struct {
	keywords             []string
	targetLanguage       string
	subtitleLanguage     string
	maxSubtitleLanguages int
}

// New builds a Relevance filter. Keywords are case-folded once here;
// blank keywords are dropped.
func New(opts Options) *Relevance {
	caser := cases.Fold()
	keywords := make([]string, 0, len(opts.Keywords))
	for _, k := range opts.Keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		keywords = append(keywords, caser.String(k))
	}
	slices.Sort(keywords)
	keywords = slices.Compact(keywords)

	return &Relevance{
		keywords:             keywords,
		targetLanguage:       opts.TargetLanguage,
		subtitleLanguage:     opts.SubtitleLanguage,
		maxSubtitleLanguages: opts.MaxSubtitleLanguages,
	}
}

// Keep reports whether the item is relevant.
func (r *Relevance) Keep(it model.Item) bool {
	return r.matchKeyword(it) || r.matchLanguage(it) || r.matchSubtitle(it)
}

// Reasons returns the names of the rules the item satisfies.
func (r *Relevance) Reasons(it model.Item) []string {
	var reasons []string
	if r.matchKeyword(it) {
		reasons = append(reasons, RuleKeyword)
	}
	if r.matchLanguage(it) {
		reasons = append(reasons, RuleLanguage)
	}
	if r.matchSubtitle(it) {
		reasons = append(reasons, RuleSubtitle)
	}
	return reasons
}

// Keywords returns the folded keyword list.
func (r *Relevance) Keywords() []string {
	return slices.Clone(r.keywords)
}

func (r *Relevance) matchKeyword(it model.Item) bool {
	if len(r.keywords) == 0 {
		return false
	}
	desc := it.String(model.FieldDescription)
	if desc == "" {
		return false
	}
	// Caser values are stateful, so one is created per call.
	desc = cases.Fold().String(desc)
	for _, k := range r.keywords {
		if strings.Contains(desc, k) {
			return true
		}
	}
	return false
}

func (r *Relevance) matchLanguage(it model.Item) bool {
	if r.targetLanguage == "" {
		return false
	}
	return it.String(model.FieldTextLanguage) == r.targetLanguage
}

func (r *Relevance) matchSubtitle(it model.Item) bool {
	if r.subtitleLanguage == "" {
		return false
	}
	langs := SubtitleLanguages(it)
	if r.maxSubtitleLanguages > 0 && len(langs) >= r.maxSubtitleLanguages {
		return false
	}
	return slices.Contains(langs, r.subtitleLanguage)
}

// SubtitleLanguages returns the subtitle language codes of an item. A
// precomputed subtitleLanguages list is preferred; otherwise the codes are
// read from video.subtitleInfos.
func SubtitleLanguages(it model.Item) []string {
	if langs := it.Strings(model.FieldSubtitleLanguages); langs != nil {
		return langs
	}

	infos := it.List(model.FieldSubtitleInfos)
	if len(infos) == 0 {
		return nil
	}
	langs := make([]string, 0, len(infos))
	for _, info := range infos {
		m, ok := info.(map[string]any)
		if !ok {
			continue
		}
		if code := model.Item(m).String(subtitleLanguageField); code != "" {
			langs = append(langs, code)
		}
	}
	return langs
}
