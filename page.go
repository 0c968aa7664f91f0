package artstyle

import (
	"html"
	"net/url"
	"regexp"
	"strings"
)

var ogImageRe = regexp.MustCompile(
	`(?i)<meta\s+[^>]*property=["']og:image["'][^>]*content=["']([^"']+)["']|` +
		`<meta\s+[^>]*content=["']([^"']+)["'][^>]*property=["']og:image["']`,
)

// ExtractOGImageURL returns the og:image URL of a gallery page, resolved
// against pageURL. Empty when the page declares none.
func ExtractOGImageURL(pageHTML, pageURL string) string {
	m := ogImageRe.FindStringSubmatch(pageHTML)
	if m == nil {
		return ""
	}
	img := m[1]
	if img == "" {
		img = m[2]
	}
	img = strings.TrimSpace(html.UnescapeString(img))
	if img == "" {
		return ""
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return img
	}
	ref, err := url.Parse(img)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

var ccLicensePathSegments = []string{
	"creativecommons.org/licenses/",
	"creativecommons.org/publicdomain/",
}

// IsCCLicenseURL reports whether rawURL names a Creative Commons license or
// public-domain dedication. The CC homepage does not count.
func IsCCLicenseURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, seg := range ccLicensePathSegments {
		if strings.Contains(lower, seg) {
			return true
		}
	}
	return false
}

// Tried in order; rel="license" links are the most authoritative.
var (
	ccRelHrefRe     = regexp.MustCompile(`(?i)rel=["']license["'][^>]*href=["']([^"']+)["']`)
	ccHrefRelRe     = regexp.MustCompile(`(?i)href=["']([^"']+)["'][^>]*rel=["']license["']`)
	ccBareHrefRe    = regexp.MustCompile(`(?i)href=["']((?:https?:)?//creativecommons\.org/(?:licenses|publicdomain)/[^"']+)["']`)
	ccMetaContentRe = regexp.MustCompile(`(?i)content=["']((?:https?:)?//creativecommons\.org/(?:licenses|publicdomain)/[^"']+)["']`)
)

// ExtractCCLicense returns the first Creative Commons license URL referenced
// by a page, or "".
func ExtractCCLicense(pageHTML string) string {
	for _, re := range []*regexp.Regexp{ccRelHrefRe, ccHrefRelRe} {
		if m := re.FindStringSubmatch(pageHTML); m != nil {
			if u := html.UnescapeString(m[1]); IsCCLicenseURL(u) {
				return u
			}
		}
	}
	for _, re := range []*regexp.Regexp{ccBareHrefRe, ccMetaContentRe} {
		if m := re.FindStringSubmatch(pageHTML); m != nil {
			return html.UnescapeString(m[1])
		}
	}
	return ""
}
