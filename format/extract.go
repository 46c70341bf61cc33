package format

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/scrapesome/scrapesome/models"
)

// PageMeta aggregates the page-level extras reported alongside formatted
// content: hyperlinks split by host, images, and Open Graph tags.
type PageMeta struct {
	Links  models.LinksResult
	Images []models.Image
	OG     models.OGMetadata
}

// CollectPageMeta gathers all page metadata in a single parse and traversal
// of rawHTML. References are resolved against sourceURL; unresolvable or
// non-http(s) targets are skipped, and duplicates keep the first occurrence.
// Parse failures yield empty (not nil) collections so API responses always
// serialize as arrays.
func CollectPageMeta(rawHTML, sourceURL string) PageMeta {
	meta := PageMeta{
		Links: models.LinksResult{
			Internal: []models.Link{},
			External: []models.Link{},
		},
		Images: []models.Image{},
	}

	base, err := url.Parse(sourceURL)
	if err != nil {
		return meta
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return meta
	}

	seen := make(map[string]bool)
	resolve := func(ref string) *url.URL {
		if ref == "" {
			return nil
		}
		u, err := base.Parse(ref)
		if err != nil {
			return nil
		}
		return u
	}

	doc.Find("a[href], img[src], meta[property]").Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "a":
			href, _ := s.Attr("href")
			u := resolve(href)
			if u == nil || (u.Scheme != "http" && u.Scheme != "https") {
				return
			}
			abs := u.String()
			if seen["a\x00"+abs] {
				return
			}
			seen["a\x00"+abs] = true

			link := models.Link{Href: abs, Text: strings.TrimSpace(s.Text())}
			if strings.EqualFold(u.Host, base.Host) {
				meta.Links.Internal = append(meta.Links.Internal, link)
			} else {
				meta.Links.External = append(meta.Links.External, link)
			}

		case "img":
			src, _ := s.Attr("src")
			u := resolve(src)
			if u == nil || u.Scheme == "data" {
				return
			}
			abs := u.String()
			if seen["img\x00"+abs] {
				return
			}
			seen["img\x00"+abs] = true

			alt, _ := s.Attr("alt")
			meta.Images = append(meta.Images, models.Image{
				Src: abs,
				Alt: strings.TrimSpace(alt),
			})

		case "meta":
			content, _ := s.Attr("content")
			if content == "" {
				return
			}
			prop, _ := s.Attr("property")
			switch prop {
			case "og:title":
				meta.OG.Title = content
			case "og:description":
				meta.OG.Description = content
			case "og:image":
				meta.OG.Image = content
			case "og:type":
				meta.OG.Type = content
			}
		}
	})

	return meta
}
