package content

import (
	"fmt"
	"regexp"
	"strings"
)

// TOCClass — CSS-класс блока оглавления; по нему определяется, что TOC уже вставлен.
const TOCClass = "table-of-contents"

var (
	headingRe      = regexp.MustCompile(`(?is)<h([1-6])([^>]*)>(.*?)</h[1-6]>`)
	idAttrRe       = regexp.MustCompile(`(?i)(?:^|\s)id\s*=\s*["']([^"']*)["']`)
	anchorStripRe  = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
	paragraphRe    = regexp.MustCompile(`(?i)<p(\s[^>]*)?>`)
	paragraphEndRe = regexp.MustCompile(`(?i)</p>`)
)

type heading struct {
	start, end int
	level      string
	attrs      string
	text       string
	anchor     string
	hasID      bool
}

// Anchor строит якорь из текста заголовка: только буквы, цифры и дефисы, нижний регистр.
func Anchor(text string) string {
	text = anchorStripRe.ReplaceAllString(StripMarkup(text), "")
	return strings.ToLower(strings.Join(strings.Fields(text), "-"))
}

// AddTableOfContents добавляет оглавление, если в контенте не меньше двух заголовков.
//
// Заголовкам проставляются id, блок TOC вставляется после первого абзаца,
// а если абзацев нет — в начало. Повторный вызов ничего не меняет.
func AddTableOfContents(body string) string {
	if strings.Contains(body, `class="`+TOCClass+`"`) {
		return body
	}

	matches := headingRe.FindAllStringSubmatchIndex(body, -1)
	if len(matches) < 2 {
		return body
	}

	headings := make([]heading, 0, len(matches))
	seen := make(map[string]int)
	for i, m := range matches {
		h := heading{
			start: m[0],
			end:   m[1],
			level: body[m[2]:m[3]],
			attrs: body[m[4]:m[5]],
			text:  body[m[6]:m[7]],
		}

		if id := idAttrRe.FindStringSubmatch(h.attrs); id != nil {
			h.anchor = id[1]
			h.hasID = true
		} else {
			h.anchor = Anchor(h.text)
			if h.anchor == "" {
				h.anchor = fmt.Sprintf("section-%d", i+1)
			}
			if n := seen[h.anchor]; n > 0 {
				seen[h.anchor] = n + 1
				h.anchor = fmt.Sprintf("%s-%d", h.anchor, n+1)
			}
		}
		seen[h.anchor]++

		headings = append(headings, h)
	}

	var b strings.Builder
	last := 0
	for _, h := range headings {
		b.WriteString(body[last:h.start])
		if h.hasID {
			b.WriteString(body[h.start:h.end])
		} else {
			fmt.Fprintf(&b, `<h%s%s id="%s">%s</h%s>`, h.level, h.attrs, h.anchor, h.text, h.level)
		}
		last = h.end
	}
	b.WriteString(body[last:])
	withAnchors := b.String()

	toc := renderTOC(headings)

	if open := paragraphRe.FindStringIndex(withAnchors); open != nil {
		if end := paragraphEndRe.FindStringIndex(withAnchors[open[1]:]); end != nil {
			cut := open[1] + end[1]
			return withAnchors[:cut] + "\n\n" + toc + withAnchors[cut:]
		}
	}

	return toc + withAnchors
}

func renderTOC(headings []heading) string {
	var b strings.Builder
	b.WriteString(`<div class="` + TOCClass + `">` + "\n<h3>Table of Contents</h3>\n<ul>\n")
	for _, h := range headings {
		fmt.Fprintf(&b, "<li><a href=\"#%s\">%s</a></li>\n", h.anchor, h.text)
	}
	b.WriteString("</ul>\n</div>\n\n")
	return b.String()
}
