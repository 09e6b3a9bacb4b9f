// Package slug derives URL-safe identifiers from human-readable names.
//
// The transliteration table mirrors the one used to generate the slugs
// already stored in production data; changing any entry would break
// existing URLs.
package slug

import (
	"fmt"
	"strings"
)

// Fallback tokens used when a name reduces to nothing.
const (
	CategoryFallback = "category"
	ProductFallback  = "product"
)

// translitTable maps recognized non-Latin runes to their Latin
// replacement. Kept as plain data so it can be tested on its own.
var translitTable = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "yo",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "sch", 'ъ': "",
	'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
	' ': "-", '"': "", '\'': "",
}

// Make reduces name to a slug: lowercase, transliterate, drop everything
// outside [a-z0-9-], collapse hyphen runs and trim hyphens at the ends.
// The result may be empty; callers decide the fallback.
func Make(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if repl, ok := translitTable[r]; ok {
			b.WriteString(repl)
			continue
		}
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' {
			b.WriteRune(r)
		}
	}

	// Collapse runs of hyphens.
	var out strings.Builder
	prevHyphen := false
	for _, r := range b.String() {
		if r == '-' {
			if prevHyphen {
				continue
			}
			prevHyphen = true
		} else {
			prevHyphen = false
		}
		out.WriteRune(r)
	}

	return strings.Trim(out.String(), "-")
}

// ForCategory derives a category slug. Categories are not auto-suffixed;
// their uniqueness is enforced at the storage level.
func ForCategory(name string) string {
	if s := Make(name); s != "" {
		return s
	}
	return CategoryFallback
}

// ForProduct derives a globally unique product slug. exists reports
// whether a candidate is already taken; while it is, a -1, -2, ...
// suffix is appended until a free slug is found.
func ForProduct(name string, exists func(candidate string) bool) string {
	base := Make(name)
	if base == "" {
		base = ProductFallback
	}

	candidate := base
	for counter := 1; exists(candidate); counter++ {
		candidate = fmt.Sprintf("%s-%d", base, counter)
	}
	return candidate
}
