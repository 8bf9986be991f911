package domain

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinHeuristicLen is the shortest symbol eligible for prefix/suffix matching.
const MinHeuristicLen = 3

// NormalizeSymbol lowercases s, strips diacritics and bracketed qualifiers:
// "USDC (Bridged)" -> "usdc", "Ëth" -> "eth".
func NormalizeSymbol(s string) string {
	s = stripBrackets(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(t, s); err == nil {
		s = out
	}
	return strings.ToLower(strings.TrimSpace(s))
}

func stripBrackets(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

// SymbolVariants returns the normalized symbol followed by its wrapped and
// bridged base forms: "wETH" -> [weth eth], "USDC.e" -> [usdc.e usdc].
func SymbolVariants(s string) []string {
	n := NormalizeSymbol(s)
	if n == "" {
		return nil
	}

	out := []string{n}
	add := func(v string) {
		if v == "" {
			return
		}
		for _, have := range out {
			if have == v {
				return
			}
		}
		out = append(out, v)
	}

	if i := strings.IndexAny(n, ".-"); i >= 2 {
		add(n[:i])
	}
	base := out[len(out)-1]
	if strings.HasPrefix(base, "w") && len(base) > MinHeuristicLen {
		add(base[1:])
	}
	return out
}

// SortedKey joins the normalized, deduplicated symbols in sorted order.
func SortedKey(symbols []string) string {
	seen := make(map[string]struct{}, len(symbols))
	keys := make([]string, 0, len(symbols))
	for _, s := range symbols {
		n := NormalizeSymbol(s)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		keys = append(keys, n)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}

// Matcher decides whether a returned market symbol answers a requested one.
// Exact and variant matches always apply. Prefix/suffix heuristics apply only
// when Strict is off and both symbols have at least MinHeuristicLen
// characters; they can pair unrelated tokens ("eth" and "steth").
type Matcher struct {
	Strict bool
}

// Match reports whether returned satisfies requested.
func (m Matcher) Match(requested, returned string) bool {
	return m.rank(requested, NormalizeSymbol(returned)) > 0
}

const (
	rankNone = iota
	rankHeuristic
	rankVariant
	rankExact
)

func (m Matcher) rank(requested, returned string) int {
	req := NormalizeSymbol(requested)
	if req == "" || returned == "" {
		return rankNone
	}
	if req == returned {
		return rankExact
	}
	for _, v := range SymbolVariants(requested)[1:] {
		if v == returned {
			return rankVariant
		}
	}
	if m.Strict || len(req) < MinHeuristicLen || len(returned) < MinHeuristicLen {
		return rankNone
	}
	if strings.HasPrefix(returned, req) || strings.HasPrefix(req, returned) ||
		strings.HasSuffix(returned, req) || strings.HasSuffix(req, returned) {
		return rankHeuristic
	}
	return rankNone
}

// Best picks the market answering requested: the best match tier wins, ties
// go to the larger market cap.
func (m Matcher) Best(requested string, markets []Market) (Market, bool) {
	var (
		best     Market
		bestRank = rankNone
	)
	for _, mk := range markets {
		r := m.rank(requested, NormalizeSymbol(mk.Symbol))
		if r == rankNone {
			continue
		}
		if r > bestRank || (r == bestRank && mk.MarketCap.GreaterThan(best.MarketCap)) {
			best, bestRank = mk, r
		}
	}
	return best, bestRank != rankNone
}
