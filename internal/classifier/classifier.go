// Package classifier maps free text to a trend category by keyword matching.
package classifier

import (
	"regexp"
	"strings"
)

// Category labels. The set is closed: Classify never returns anything else.
const (
	Technology    = "tecnologia"
	Entertainment = "entretenimento"
	Sports        = "esportes"
	Science       = "ciência"
	Finance       = "finanças"
	Politics      = "política"
	Health        = "saúde"
	News          = "noticias"
	Other         = "outros"
)

type keywordSet struct {
	category string
	keywords []string
}

// phraseRules resolve texts that the keyword table would put in the wrong
// bucket. Every substring of a rule must be present for it to match.
var phraseRules = []keywordSet{
	{Entertainment, []string{"filme", "cinema"}},
	{News, []string{"notícias", "política", "economia"}},
	{Sports, []string{"campeonato", "futebol"}},
}

// keywordTable is checked in order; the first category with a substring hit wins.
var keywordTable = []keywordSet{
	{Technology, []string{"tech", "tecnologia", "programming", "code", "software", "hardware", "ai", "ia", "inteligência artificial", "app", "smartphone", "iphone", "android"}},
	{Entertainment, []string{"music", "música", "film", "filme", "series", "série", "tv", "cinema", "entertainment", "game", "jogo", "netflix", "streaming", "hollywood", "show"}},
	{Sports, []string{"sport", "esporte", "football", "futebol", "soccer", "basketball", "basquete", "nba", "fifa", "olympics", "olimpíadas", "atleta", "championship"}},
	{Science, []string{"science", "ciência", "research", "pesquisa", "discovery", "descoberta", "space", "espaço", "nasa", "biology", "biologia", "physics", "física", "chemistry", "química"}},
	{Finance, []string{"finance", "finanças", "economy", "economia", "market", "mercado", "stock", "ação", "invest", "investimento", "bank", "banco", "bitcoin", "crypto", "money", "dinheiro"}},
	{Politics, []string{"politics", "política", "government", "governo", "election", "eleição", "president", "presidente", "congress", "congresso", "democracy", "democracia"}},
	{Health, []string{"health", "saúde", "covid", "vaccine", "vacina", "doctor", "médico", "hospital", "disease", "doença", "treatment", "tratamento", "medicine", "medicina"}},
	{News, []string{"notícia", "noticia", "news", "jornal"}},
}

// Classify returns the category for text. Matching is plain substring search
// on the lower-cased input, so a keyword inside a longer word still counts.
func Classify(text string) string {
	text = strings.ToLower(text)

	for _, rule := range phraseRules {
		if containsAll(text, rule.keywords) {
			return rule.category
		}
	}

	for _, set := range keywordTable {
		for _, keyword := range set.keywords {
			if strings.Contains(text, keyword) {
				return set.category
			}
		}
	}
	return Other
}

// Categories lists every label Classify can return, in precedence order.
func Categories() []string {
	out := make([]string, 0, len(keywordTable)+1)
	for _, set := range keywordTable {
		out = append(out, set.category)
	}
	return append(out, Other)
}

func containsAll(text string, parts []string) bool {
	for _, p := range parts {
		if !strings.Contains(text, p) {
			return false
		}
	}
	return true
}

var hashtagPattern = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// ExtractHashtags returns the hashtags in text without the leading '#',
// in first-seen order with duplicates removed.
func ExtractHashtags(text string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		tags = append(tags, m[1])
	}
	return tags
}
