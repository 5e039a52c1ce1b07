package resolver

import (
	"log/slog"
	"strings"

	"rehabgo/lib/textutil"

	"github.com/antzucaro/matchr"
)

// ParseTokens reads the compact "name:code,name:code" form used in config
// files and on the command line. Malformed entries are dropped with a
// warning instead of failing the whole batch.
func ParseTokens(s string) []ProgramToken {
	var tokens []ProgramToken
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, code, found := strings.Cut(entry, ":")
		name = strings.TrimSpace(name)
		code = strings.TrimSpace(code)
		if !found || name == "" || code == "" {
			slog.Warn("skipping malformed program token, want name:code", "entry", entry)
			continue
		}
		tokens = append(tokens, ProgramToken{Name: name, Code: code})
	}
	return tokens
}

// FilterTokens keeps the tokens naming one requested program. Matching is by
// slug first, then by whitespace and case insensitive name equality, so both
// "neck-care" and "Neck Care" select the same pair. When nothing matches,
// suggestion holds the configured slug closest to the request.
func FilterTokens(tokens []ProgramToken, only string) (kept []ProgramToken, suggestion string) {
	for _, token := range tokens {
		if textutil.Slug(token.Name) == only ||
			textutil.NormalizeName(token.Name) == textutil.NormalizeName(only) {
			kept = append(kept, token)
		}
	}
	if len(kept) > 0 {
		return kept, ""
	}

	bestScore := 0.0
	for _, token := range tokens {
		slug := textutil.Slug(token.Name)
		if score := matchr.JaroWinkler(only, slug, true); score > bestScore {
			suggestion = slug
			bestScore = score
		}
	}
	return nil, suggestion
}
