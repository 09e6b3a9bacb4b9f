package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeTransliteratesCyrillic(t *testing.T) {
	assert.Equal(t, "svezhaya-morkov", Make("Свежая морковь"))
	assert.Equal(t, "moloko", Make("Молоко"))
	assert.Equal(t, "yabloki-golden", Make("Яблоки Голден"))
	assert.Equal(t, "borsch", Make("Борщ"))
	assert.Equal(t, "myod", Make("Мёд"))
}

func TestMakeKeepsLatinAndDigits(t *testing.T) {
	assert.Equal(t, "cola-05l", Make("Cola 0.5L"))
	assert.Equal(t, "green-tea", Make("Green Tea"))
}

func TestMakeStripsQuotesAndSpecials(t *testing.T) {
	assert.Equal(t, "syr-rossiyskiy", Make(`Сыр "Российский"`))
	assert.Equal(t, "babushkino-varene", Make("Бабушкино варенье!!!"))
}

func TestMakeCollapsesAndTrimsHyphens(t *testing.T) {
	assert.Equal(t, "a-b", Make("a   b"))
	assert.Equal(t, "a-b", Make("- a - b -"))
	assert.Equal(t, "", Make("---"))
	assert.Equal(t, "", Make("!!!"))
}

func TestMakeOnlyProducesAllowedRunes(t *testing.T) {
	s := Make("Свежая морковь")
	require.NotEmpty(t, s)
	for _, r := range s {
		ok := r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-'
		assert.Truef(t, ok, "unexpected rune %q in slug %q", r, s)
	}
	assert.NotContains(t, s, "--")
	assert.NotEqual(t, byte('-'), s[0])
	assert.NotEqual(t, byte('-'), s[len(s)-1])
}

func TestForCategoryFallback(t *testing.T) {
	assert.Equal(t, "category", ForCategory("???"))
	assert.Equal(t, "ovoschi", ForCategory("Овощи"))
}

func TestForProductFallback(t *testing.T) {
	slug := ForProduct("???", func(string) bool { return false })
	assert.Equal(t, "product", slug)
}

func TestForProductUniqueSuffix(t *testing.T) {
	taken := map[string]bool{}
	exists := func(c string) bool { return taken[c] }

	first := ForProduct("Свежая морковь", exists)
	require.Equal(t, "svezhaya-morkov", first)
	taken[first] = true

	second := ForProduct("Свежая Морковь", exists)
	require.Equal(t, "svezhaya-morkov-1", second)
	taken[second] = true

	third := ForProduct("свежая морковь", exists)
	assert.Equal(t, "svezhaya-morkov-2", third)
}

func TestForProductDeterministic(t *testing.T) {
	exists := func(string) bool { return false }
	assert.Equal(t, ForProduct("Хлеб Бородинский", exists), ForProduct("Хлеб Бородинский", exists))
}
