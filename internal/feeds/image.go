package feeds

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

var rasterImageExt = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp)$`)

// ResolveImage picks the best-effort image of an entry. Rules are tried in
// order and the first usable URL wins:
//  1. an enclosure whose path ends in a raster image extension
//  2. media:content url
//  3. media:thumbnail url
//  4. the first <img src> inside the entry HTML
//
// An empty string means no image.
func ResolveImage(item *gofeed.Item) string {
	if item == nil {
		return ""
	}

	for _, enclosure := range item.Enclosures {
		if enclosure != nil && isRasterImageURL(enclosure.URL) {
			return strings.TrimSpace(enclosure.URL)
		}
	}

	if u := mediaURL(item.Extensions, "content"); u != "" {
		return u
	}

	if u := mediaURL(item.Extensions, "thumbnail"); u != "" {
		return u
	}

	for _, html := range []string{item.Content, item.Description} {
		if u := firstImageSrc(html); u != "" {
			return u
		}
	}

	return ""
}

func isRasterImageURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return rasterImageExt.MatchString(raw)
	}
	return rasterImageExt.MatchString(parsed.Path)
}

// mediaURL reads the url attribute of a Media RSS element, looking inside
// media:group as well.
func mediaURL(extensions ext.Extensions, name string) string {
	media, ok := extensions["media"]
	if !ok {
		return ""
	}

	if u := firstURLAttr(media[name]); u != "" {
		return u
	}

	for _, group := range media["group"] {
		if u := firstURLAttr(group.Children[name]); u != "" {
			return u
		}
	}

	return ""
}

func firstURLAttr(elements []ext.Extension) string {
	for _, el := range elements {
		if u := strings.TrimSpace(el.Attrs["url"]); u != "" {
			return u
		}
	}
	return ""
}

func firstImageSrc(html string) string {
	if !strings.Contains(strings.ToLower(html), "<img") {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	var src string
	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v, ok := s.Attr("src"); ok && strings.TrimSpace(v) != "" {
			src = strings.TrimSpace(v)
			return false
		}
		return true
	})

	return src
}
