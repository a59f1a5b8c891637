// Package crawler discovers the URLs of a site before they are scanned.
//
// # Components
//
//   - Admit / Matcher: the include and exclude pattern filter
//   - Frontier: the breadth-first discovery state
//   - Spider: drives a browser through the frontier
//   - ExtractLinks: pulls absolute http(s) link targets out of rendered HTML
//
// Discovery is bounded twice: by the number of URLs discovered (max_urls)
// and by the number of pages visited (scan_depth). scan_depth is a page
// budget, not a link distance from the start URL.
//
// # Usage
//
//	spider := crawler.NewSpider(session,
//	    crawler.WithMaxURLs(50),
//	    crawler.WithMaxVisits(3),
//	    crawler.WithPatterns([]string{"*example.com*"}, []string{"*logout*"}),
//	)
//	urls, err := spider.Discover(ctx, "https://example.com/")
package crawler
