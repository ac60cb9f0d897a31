package router

import (
	"regexp"
	"sort"
	"strings"

	"purple/internal/catalog"
)

// searchPrefixes are stripped from the front of a query, longest first.
var searchPrefixes = sortedByLength([]string{
	"search for", "search google for", "google search for", "search in google for",
	"search in edge for", "edge search for",
	"google search", "search google", "search in google",
	"tell me about", "information about", "info about", "find information about",
	"what is", "what are", "what was", "what were",
	"who is", "who are", "who was", "who were",
	"where is", "where are", "where was",
	"when is", "when are", "when was",
	"why is", "why are", "why was",
	"how to", "how do", "how does", "how did",
	"find out", "find", "look for",
	"search", "google",
})

// searchOpeners mark a query as informational when it starts with them.
var searchOpeners = []string{
	"what is", "what are", "who is", "who are", "where is", "when is", "why is",
	"how to", "how do", "tell me about", "find", "look for", "information about",
}

var interrogatives = []string{
	"what is", "what are", "who is", "who are", "where is", "when is", "why is",
	"how to", "tell me about",
}

var connectors = []string{"for", "about", "on", "regarding", "concerning"}

func sortedByLength(list []string) []string {
	out := append([]string(nil), list...)
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

func hasPrefixWord(text, prefix string) bool {
	return text == prefix || strings.HasPrefix(text, prefix+" ")
}

// IsSearch reports an informational request that does not also ask to
// open something.
func IsSearch(text string) bool {
	if catalog.ContainsWord(text, "open") {
		return false
	}
	if catalog.ContainsWord(text, "search") {
		return true
	}
	if catalog.ContainsWord(text, "google") && len(strings.Fields(text)) > 1 {
		return true
	}
	for _, p := range searchOpeners {
		if hasPrefixWord(text, p) {
			return true
		}
	}
	return false
}

// IsInterrogative reports a clear question: a question mark or one of the
// question phrases.
func IsInterrogative(text string) bool {
	return strings.Contains(text, "?") || containsAnyPhrase(text, interrogatives)
}

// ExtractSearchTerm strips the longest known prefix, then leading
// connector words, then surrounding punctuation. When little or nothing is
// left the query itself is returned.
func ExtractSearchTerm(query string) string {
	original := strings.TrimSpace(query)
	term := strings.ToLower(original)

	for _, p := range searchPrefixes {
		if hasPrefixWord(term, p) {
			term = strings.TrimSpace(term[len(p):])
			break
		}
	}

	for stripped := true; stripped; {
		stripped = false
		for _, c := range connectors {
			if strings.HasPrefix(term, c+" ") {
				term = strings.TrimSpace(term[len(c):])
				stripped = true
			}
		}
	}

	term = strings.Trim(term, ".,!?;: ")
	term = strings.Join(strings.Fields(term), " ")

	if len(term) < 2 {
		return original
	}
	return term
}

var (
	extensionRe    = regexp.MustCompile(`\.[a-z]{2,4}\b`)
	debrisFragment = []string{
		"/", "\\", "& ", "appdata", "onedrive", "site-packages",
		"program files", "local/programs", "main.py",
	}
)

// IsDebris reports text that looks like a path, executable or shell
// residue picked up by the recogniser rather than something said.
func IsDebris(text string) bool {
	if len(strings.TrimSpace(text)) < 3 {
		return true
	}
	if containsAnyPhrase(text, debrisFragment) {
		return true
	}
	return extensionRe.MatchString(text)
}
