package htmlx

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxTitleLen = 120

// PageTitle returns the trimmed <title> of a page, or "" when the page has
// none. Used to tell an unknown-symbol page from a block page in logs when
// an extraction anchor is missing.
func PageTitle(buf string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(buf))
	if err != nil {
		return ""
	}
	title := strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen]
	}
	return title
}
