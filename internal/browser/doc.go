// Package browser defines the page-level browser capability used by the
// crawler, the scan pipeline and authentication, plus a chromedp-backed
// implementation.
//
// A Session owns one browser process. Each Page is one tab that must be
// closed by whoever opened it; pages share cookies with every other page in
// the same session, which is what lets a single login carry over to the
// pages scanned afterwards.
package browser
