package search

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"priceradar-backend/internal/model"
)

// Match-class scores. The running score takes the best matching reason, not an
// additive total; only the freshness and image bonuses are added on top.
const (
	scoreTitleExact  = 100
	scoreTitlePrefix = 80
	scoreTitleTokens = 60
	scoreTokenOrder  = 10
	scoreGTINExact   = 90
	scoreBrandExact  = 55
	scoreBrandSubstr = 50
	scoreDescTokens  = 30
	scoreFreshWeek   = 10
	scoreFreshMonth  = 5
	scoreImage       = 5
)

// normalizeText strips diacritics (canonical decomposition, combining marks
// dropped), lower-cases and trims. "Kühlschrank" and "kuhlschrank" compare
// equal after normalization.
func normalizeText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// Score ranks rec against a raw search term. Deterministic, source-independent
// and side-effect-free; 0 when the term is empty or nothing matches.
func Score(rec *model.ProductRecord, term string) int {
	return scoreAt(rec, term, time.Now().UTC())
}

func scoreAt(rec *model.ProductRecord, term string, now time.Time) int {
	t := normalizeText(term)
	tokens := strings.Fields(t)
	if len(tokens) == 0 {
		return 0
	}

	best := 0

	if rec.GTIN != "" && normalizeText(rec.GTIN) == t {
		best = maxInt(best, scoreGTINExact)
	}

	if title := normalizeText(rec.Title); title != "" {
		switch {
		case title == t:
			best = maxInt(best, scoreTitleExact)
		case strings.HasPrefix(title, t):
			best = maxInt(best, scoreTitlePrefix)
		default:
			matched, inOrder := matchTokens(title, tokens)
			switch {
			case matched == len(tokens):
				s := scoreTitleTokens
				if inOrder {
					s += scoreTokenOrder
				}
				best = maxInt(best, s)
			case matched*2 > len(tokens):
				best = maxInt(best, 40*matched/len(tokens))
			case matched > 0:
				best = maxInt(best, 20*matched/len(tokens))
			}
		}
	}

	if brand := normalizeText(rec.Brand); brand != "" {
		switch {
		case brand == t:
			best = maxInt(best, scoreBrandExact)
		case strings.Contains(brand, t) || strings.Contains(t, brand):
			best = maxInt(best, scoreBrandSubstr)
		default:
			if matched, _ := matchTokens(brand, tokens); matched > 0 {
				best = maxInt(best, 45*matched/len(tokens))
			}
		}
	}

	if desc := normalizeText(rec.Description); desc != "" {
		matched, _ := matchTokens(desc, tokens)
		switch {
		case matched == len(tokens):
			best = maxInt(best, scoreDescTokens)
		case matched*2 > len(tokens):
			best = maxInt(best, 25*matched/len(tokens))
		case matched > 0:
			best = maxInt(best, 15*matched/len(tokens))
		}
	}

	return best + freshnessBonus(rec, now) + imageBonus(rec)
}

// matchTokens counts query tokens contained in the field and reports whether
// all matched tokens occur in the field in the query's left-to-right order.
func matchTokens(field string, tokens []string) (matched int, inOrder bool) {
	inOrder = true
	pos := 0
	for _, tok := range tokens {
		if !strings.Contains(field, tok) {
			continue
		}
		matched++
		if idx := strings.Index(field[pos:], tok); idx >= 0 {
			pos += idx + len(tok)
		} else {
			inOrder = false
		}
	}
	return matched, inOrder
}

// freshnessBonus rewards recently scraped records. Timestamps are treated as
// UTC; records without one get no bonus.
func freshnessBonus(rec *model.ProductRecord, now time.Time) int {
	if rec.ScrapedAt == nil {
		return 0
	}
	age := now.Sub(rec.ScrapedAt.UTC())
	switch {
	case age < 7*24*time.Hour:
		return scoreFreshWeek
	case age < 30*24*time.Hour:
		return scoreFreshMonth
	default:
		return 0
	}
}

func imageBonus(rec *model.ProductRecord) int {
	if rec.ImageURL != "" {
		return scoreImage
	}
	return 0
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
