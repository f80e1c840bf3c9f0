package content

import (
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultMaxTags — количество автосгенерированных тегов.
const DefaultMaxTags = 8

// Слова из 4+ латинских букв. Один фильтр длины вместо двух.
var wordRe = regexp.MustCompile(`\b[a-z]{4,}\b`)

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		the and for are but not you all can had her was one our out day get has him his
		how its may new now old see two who boy did she use way will with this that have
		from they know want been good much some time very when come here just like long
		make many over such take than them well were`) {
		stopWords[w] = struct{}{}
	}
}

// GenerateTags возвращает до maxTags самых частых слов контента.
//
// Разметка удаляется, слова приводятся к нижнему регистру, стоп-слова
// отбрасываются. При равной частоте раньше идёт слово, встреченное первым.
// Результат — слова с заглавной буквы.
func GenerateTags(body string, maxTags int) []string {
	if maxTags <= 0 {
		maxTags = DefaultMaxTags
	}

	words := wordRe.FindAllString(strings.ToLower(StripMarkup(body)), -1)

	type entry struct {
		word  string
		count int
		first int
	}
	counts := make(map[string]*entry)
	var order []*entry
	for i, w := range words {
		if _, stop := stopWords[w]; stop {
			continue
		}
		e, ok := counts[w]
		if !ok {
			e = &entry{word: w, first: i}
			counts[w] = e
			order = append(order, e)
		}
		e.count++
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].count != order[j].count {
			return order[i].count > order[j].count
		}
		return order[i].first < order[j].first
	})

	if len(order) > maxTags {
		order = order[:maxTags]
	}

	caser := cases.Title(language.Und)
	tags := make([]string, 0, len(order))
	for _, e := range order {
		tags = append(tags, caser.String(e.word))
	}
	return tags
}
