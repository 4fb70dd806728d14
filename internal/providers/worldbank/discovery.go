package worldbank

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/phoslab/phosdash/internal/infra"
)

// workbookLinkMarker identifies anchor links to the monthly workbook
// on the research page.
const workbookLinkMarker = "CMO-Historical-Data-Monthly"

// DiscoverWorkbookURLs scrapes pageURL for links to mirrors of the
// monthly commodities workbook. Links are resolved against the page
// URL, deduplicated, and returned in document order.
func DiscoverWorkbookURLs(ctx context.Context, client *http.Client, pageURL string) ([]string, error) {
	body, _, err := infra.DoGet(ctx, client, pageURL, nil)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse research page: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page URL: %w", err)
	}

	var urls []string
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !strings.Contains(href, workbookLinkMarker) {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		if !strings.HasSuffix(strings.ToLower(resolved.Path), ".xlsx") {
			return
		}
		abs := resolved.String()
		if !seen[abs] {
			seen[abs] = true
			urls = append(urls, abs)
		}
	})
	return urls, nil
}
