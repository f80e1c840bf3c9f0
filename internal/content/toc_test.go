package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnchor(t *testing.T) {
	assert.Equal(t, "getting-started", Anchor("Getting Started"))
	assert.Equal(t, "step-1-install-go", Anchor("Step 1: Install <code>Go</code>!"))
	assert.Equal(t, "a-b", Anchor("  a   b "))
}

func TestAddTableOfContents_FewerThanTwoHeadings(t *testing.T) {
	body := "<p>Intro</p><h2>Only</h2><p>Text</p>"
	assert.Equal(t, body, AddTableOfContents(body))
	assert.Equal(t, "no headings", AddTableOfContents("no headings"))
}

func TestAddTableOfContents_AfterFirstParagraph(t *testing.T) {
	body := "<p>Intro</p><h2>First Step</h2><p>a</p><h2>Second Step</h2><p>b</p>"

	got := AddTableOfContents(body)

	assert.True(t, strings.HasPrefix(got, "<p>Intro</p>\n\n<div class=\"table-of-contents\">"), got)
	assert.Contains(t, got, `<h2 id="first-step">First Step</h2>`)
	assert.Contains(t, got, `<h2 id="second-step">Second Step</h2>`)
	assert.Contains(t, got, `<li><a href="#first-step">First Step</a></li>`)
	assert.Contains(t, got, `<li><a href="#second-step">Second Step</a></li>`)
	assert.Equal(t, 1, strings.Count(got, TOCClass))
}

func TestAddTableOfContents_PrependWithoutParagraph(t *testing.T) {
	body := "<h1>A</h1><div>x</div><h3 class=\"sub\">B</h3>"

	got := AddTableOfContents(body)

	assert.True(t, strings.HasPrefix(got, `<div class="table-of-contents">`))
	assert.Contains(t, got, `<h3 class="sub" id="b">B</h3>`)
}

func TestAddTableOfContents_CaseInsensitiveHeadings(t *testing.T) {
	got := AddTableOfContents("<H2>Alpha</H2><h2>Beta</h2>")
	assert.Contains(t, got, `<h2 id="alpha">Alpha</h2>`)
	assert.Contains(t, got, `href="#beta"`)
}

func TestAddTableOfContents_Idempotent(t *testing.T) {
	body := "<p>Intro</p><h2>One</h2><p>1</p><h2>Two</h2>"

	once := AddTableOfContents(body)
	twice := AddTableOfContents(once)

	assert.Equal(t, once, twice)
	assert.Equal(t, 1, strings.Count(twice, TOCClass))
	assert.Equal(t, 1, strings.Count(twice, `id="one"`))
}

func TestAddTableOfContents_KeepsExistingIDs(t *testing.T) {
	body := `<h2 id="custom">One</h2><h2>Two</h2>`

	got := AddTableOfContents(body)

	assert.Contains(t, got, `<h2 id="custom">One</h2>`)
	assert.Contains(t, got, `href="#custom"`)
	assert.Equal(t, 1, strings.Count(got, `id="custom"`))
}

func TestAddTableOfContents_DataIDIsNotID(t *testing.T) {
	body := `<h2 data-id="x1">Intro</h2><h2 class="big" ID='setup'>Setup</h2>`

	got := AddTableOfContents(body)

	assert.Contains(t, got, `<h2 data-id="x1" id="intro">Intro</h2>`)
	assert.Contains(t, got, `href="#intro"`)
	assert.NotContains(t, got, `href="#x1"`)
	assert.Contains(t, got, `href="#setup"`)
}

func TestAddTableOfContents_DuplicateHeadings(t *testing.T) {
	got := AddTableOfContents("<h2>Setup</h2><h2>Setup</h2>")

	require.Contains(t, got, `id="setup"`)
	assert.Contains(t, got, `id="setup-2"`)
	assert.Contains(t, got, `href="#setup-2"`)
}

func TestAddTableOfContents_ParagraphWithAttributes(t *testing.T) {
	body := `<p class="lead">Lead</p><h2>A</h2><h2>B</h2>`

	got := AddTableOfContents(body)

	assert.True(t, strings.HasPrefix(got, `<p class="lead">Lead</p>`+"\n\n"+`<div class="table-of-contents">`), got)
}
