package dom

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!DOCTYPE html>
<html lang="en"><head><title> Sample </title></head>
<body>
  <form id="login" action="/session">
    <label for="user">User name</label>
    <input id="user" name="user">
    <label>Remember <input type="checkbox" id="remember"></label>
    <input type="hidden" id="h">
  </form>
  <p id="dup">first</p>
  <p id="dup">second</p>
</body></html>`

func TestParse(t *testing.T) {
	doc, err := Parse(page, "https://example.com/login")
	require.NoError(t, err)

	assert.Equal(t, "Sample", doc.Title())
	assert.Equal(t, "https://example.com/login", doc.Location())
	assert.NotNil(t, doc.Body())
}

func TestParseRejectsEmpty(t *testing.T) {
	_, err := Parse("", "")
	assert.ErrorIs(t, err, ErrEmptyHTML)
}

func TestParseRejectsOversized(t *testing.T) {
	_, err := ParseReader(strings.NewReader(strings.Repeat("a", MaxHTMLSize+1)), "")
	assert.ErrorIs(t, err, ErrHTMLTooLarge)
}

func TestElementByIDFirstWins(t *testing.T) {
	doc, err := Parse(page, "")
	require.NoError(t, err)

	n := doc.ElementByID("dup")
	require.NotNil(t, n)
	assert.Equal(t, "first", TextContent(n))
	assert.Nil(t, doc.ElementByID("missing"))
}

func TestLabels(t *testing.T) {
	doc, err := Parse(page, "")
	require.NoError(t, err)

	labels := doc.Labels(doc.ElementByID("user"))
	require.Len(t, labels, 1)
	assert.Equal(t, "User name", TextContent(labels[0]))

	wrapped := doc.Labels(doc.ElementByID("remember"))
	require.Len(t, wrapped, 1)
	assert.Equal(t, "Remember", NormalizeWhitespace(TextContent(wrapped[0])))

	assert.Empty(t, doc.Labels(doc.ElementByID("h")))
	assert.Empty(t, doc.Labels(doc.ElementByID("login")))
}

func TestFind(t *testing.T) {
	doc, err := Parse(page, "")
	require.NoError(t, err)

	byXPath, err := doc.Find(`//*[@id="user"]`, "")
	require.NoError(t, err)
	byCSS, err := doc.Find("", "#user")
	require.NoError(t, err)
	assert.Same(t, byXPath, byCSS)

	_, err = doc.Find("", "#nope")
	assert.ErrorIs(t, err, ErrNoMatch)

	_, err = doc.Find("", "[[")
	assert.Error(t, err)

	_, err = doc.Find("", "")
	assert.Error(t, err)
}

func TestResolveURL(t *testing.T) {
	doc, err := Parse(page, "https://example.com/a/b")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/session", doc.ResolveURL("/session"))

	bare, err := Parse(page, "")
	require.NoError(t, err)
	assert.Equal(t, "/session", bare.ResolveURL("/session"))
}

func TestNodeHelpers(t *testing.T) {
	doc, err := Parse(`<div id="root" class=" a  b "><span>x</span> <em>y</em><my-widget></my-widget></div>`, "")
	require.NoError(t, err)

	root := doc.ElementByID("root")
	assert.Equal(t, []string{"a", "b"}, Classes(root))
	assert.Len(t, Children(root), 3)
	assert.Equal(t, 3, DescendantCount(root))
	assert.Equal(t, "x y", NormalizeWhitespace(TextContent(root)))
	assert.True(t, IsCustomElement(Children(root)[2]))
	assert.Equal(t, "body", TagName(Parent(root)))
	assert.Equal(t, "em", TagName(NextElement(Children(root)[0])))
	assert.Equal(t, "<span>x</span>", OuterHTML(Children(root)[0]))
}

func TestTruncateKeepsRunes(t *testing.T) {
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "é", Truncate("éé", 3))
	assert.Equal(t, "short", Truncate("short", 10))
}
