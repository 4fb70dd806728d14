// Package worldbank extracts the canonical monthly phosphate rock price
// series from the World Bank "Pink Sheet" commodities workbook.
//
// The workbook is published at two URLs (primary and a byte-for-byte
// fallback publication); candidates are tried in order and a
// structurally unusable workbook advances to the next candidate just
// like a failed download does.
// Docs: https://www.worldbank.org/en/research/commodity-markets
package worldbank

import (
	"context"
	"net/http"
	"regexp"

	"github.com/rs/zerolog/log"

	"github.com/phoslab/phosdash/internal/infra"
	"github.com/phoslab/phosdash/internal/provider"
)

const (
	sourceName = "worldbank"

	// Primary and fallback publications of the same monthly workbook.
	primaryURL  = "https://www.worldbank.org/content/dam/Worldbank/GEP/GEPcommodities/CMO-Historical-Data-Monthly.xlsx"
	fallbackURL = "https://thedocs.worldbank.org/en/doc/5d903e848db1d1b83e0ec8f744e55570-0350012021/related/CMO-Historical-Data-Monthly.xlsx"

	// CommodityMarketsPage is the research page scraped for workbook
	// mirrors when discovery is enabled.
	CommodityMarketsPage = "https://www.worldbank.org/en/research/commodity-markets"

	preferredSheet = "Monthly Prices"
	strictRowMatch = "phosphate rock"
	looseRowMatch  = "phosphate"
)

// DefaultURLs is the ranked candidate list for the workbook.
var DefaultURLs = []string{primaryURL, fallbackURL}

// monthColumn matches value-bearing column labels, e.g. "2024M03".
var monthColumn = regexp.MustCompile(`^\d{4}M\d{2}$`)

// Source is the Pink Sheet price source.
type Source struct {
	urls       []string
	client     *http.Client
	mirrorPage string
}

// New creates a price source over the given candidate URLs, tried in
// order. An empty list falls back to the published defaults; a nil
// client uses infra.DefaultClient.
func New(urls []string, client *http.Client) *Source {
	if len(urls) == 0 {
		urls = DefaultURLs
	}
	if client == nil {
		client = infra.DefaultClient
	}
	return &Source{urls: urls, client: client}
}

// EnableMirrorDiscovery makes Series scrape pageURL for additional
// workbook mirrors, appended after the configured candidates. An empty
// pageURL uses CommodityMarketsPage.
func (s *Source) EnableMirrorDiscovery(pageURL string) {
	if pageURL == "" {
		pageURL = CommodityMarketsPage
	}
	s.mirrorPage = pageURL
}

// Name implements provider.Provider.
func (s *Source) Name() string { return sourceName }

// Describe implements provider.Provider.
func (s *Source) Describe() string {
	return "World Bank Pink Sheet monthly commodity prices (phosphate rock, USD/t)"
}

// Ping probes the candidate URLs in order and succeeds when any of
// them is reachable.
func (s *Source) Ping(ctx context.Context) error {
	var causes []error
	for _, u := range s.urls {
		err := infra.Probe(ctx, s.client, u)
		if err == nil {
			return nil
		}
		causes = append(causes, err)
	}
	return &provider.ErrAllSourcesUnavailable{Source: sourceName, Causes: causes}
}

// candidateURLs returns the configured candidates, extended by mirror
// discovery when enabled. Discovery failure is logged and non-fatal.
func (s *Source) candidateURLs(ctx context.Context) []string {
	urls := append([]string{}, s.urls...)
	if s.mirrorPage == "" {
		return urls
	}

	discovered, err := DiscoverWorkbookURLs(ctx, s.client, s.mirrorPage)
	if err != nil {
		log.Warn().Err(err).Str("page", s.mirrorPage).Msg("workbook mirror discovery failed")
		return urls
	}
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		seen[u] = true
	}
	for _, u := range discovered {
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	return urls
}
