package feeds

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

var blankLines = regexp.MustCompile(`\n{3,}`)

// droppedTags never reach the prompt. The commonmark image rule would
// otherwise still render img as ![](src).
var droppedTags = []string{"img", "picture", "script", "style", "iframe"}

// Snippet renders the first non-empty HTML fragment as compact markdown
// text for use in the summarization prompt. Images and scripts are dropped.
func Snippet(fragments ...string) string {
	for _, fragment := range fragments {
		if text := htmlToText(fragment); text != "" {
			return text
		}
	}
	return ""
}

func htmlToText(html string) string {
	html = strings.TrimSpace(html)
	if html == "" {
		return ""
	}

	converter := md.NewConverter("", true, nil)
	converter.Remove(droppedTags...)
	converter.AddRules(md.Rule{
		Filter: droppedTags,
		Replacement: func(string, *goquery.Selection, *md.Options) *string {
			return md.String("")
		},
	})

	text, err := converter.ConvertString(html)
	if err != nil {
		return strings.TrimSpace(html)
	}

	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
