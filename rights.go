package artstyle

import (
	"net/url"
	"strings"
)

// Rights is a coarse verdict on whether an artwork may be reused.
type Rights int

const (
	RightsOpen       Rights = iota // Creative Commons, public domain or an open archive
	RightsUnknown                  // no evidence either way
	RightsRestricted               // stock agency or all-rights-reserved source
)

func (r Rights) String() string {
	switch r {
	case RightsOpen:
		return "open"
	case RightsRestricted:
		return "restricted"
	default:
		return "unknown"
	}
}

func (r Rights) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Rights) UnmarshalText(b []byte) error {
	switch string(b) {
	case "open":
		*r = RightsOpen
	case "restricted":
		*r = RightsRestricted
	default:
		*r = RightsUnknown
	}
	return nil
}

// StockDomains are agencies that license artwork commercially.
var StockDomains = []string{
	"shutterstock",
	"gettyimages",
	"istockphoto",
	"adobestock",
	"depositphotos",
	"dreamstime",
	"123rf",
	"alamy",
	"bigstockphoto",
	"vectorstock",
	"freepik",
	"canva.", // not "canvas"
	"clipartof",
	"agefotostock",
	"superstock",
}

// stockAgencies are agency names as they appear in copyright and credit
// fields.
var stockAgencies = []string{
	"shutterstock",
	"getty images",
	"istock",
	"adobe stock",
	"alamy",
	"dreamstime",
	"depositphotos",
	"123rf",
	"freepik",
}

// StockURLPatterns are path segments of stock product pages.
var StockURLPatterns = []string{
	"/stock-photo",
	"/stock-image",
	"/stock-illustration",
	"/editorial-image",
	"/premium-vector",
}

// OpenDomains are archives that publish artwork under open licenses.
var OpenDomains = []string{
	"wikimedia",
	"wikiart",
	"openverse",
	"flickr",
	"rawpixel",
	"artvee",
	"europeana",
	"archive.org",
}

var openLicenseTerms = []string{
	"creative commons",
	"public domain",
	"cc by",
	"cc-by",
	"cc0",
}

// RightsSignal is one piece of evidence about an artwork's rights.
type RightsSignal struct {
	Source string `json:"source"` // domain, page_license, metadata_stock, metadata_license
	Detail string `json:"detail"`
	Rights Rights `json:"rights"`
}

// RightsAssessment combines every signal into one verdict.
type RightsAssessment struct {
	Rights  Rights         `json:"rights"`            // restricted > open > unknown
	License string         `json:"license,omitempty"` // license URL or text, when one was found
	Signals []RightsSignal `json:"signals"`           // never nil
}

// AssessRights judges reuse rights from the URL the artwork came from, the
// license declared by its page and its embedded metadata. Any argument may be
// empty or nil.
func AssessRights(sourceURL, pageLicense string, meta *ArtworkMetadata) RightsAssessment {
	a := RightsAssessment{Signals: make([]RightsSignal, 0, 4)} //nolint:mnd // one slot per signal source

	switch r := domainRights(sourceURL); r {
	case RightsRestricted:
		a.Signals = append(a.Signals, RightsSignal{Source: "domain", Detail: "stock source: " + sourceURL, Rights: r})
	case RightsOpen:
		a.Signals = append(a.Signals, RightsSignal{Source: "domain", Detail: "open archive: " + sourceURL, Rights: r})
	}

	if IsCCLicenseURL(pageLicense) {
		a.License = pageLicense
		a.Signals = append(a.Signals, RightsSignal{Source: "page_license", Detail: pageLicense, Rights: RightsOpen})
	}

	if meta != nil {
		rights := strings.ToLower(meta.Copyright + " " + meta.Artist)
		for _, agency := range stockAgencies {
			if strings.Contains(rights, agency) {
				a.Signals = append(a.Signals, RightsSignal{Source: "metadata_stock", Detail: firstNonEmpty(meta.Copyright, meta.Artist), Rights: RightsRestricted})
				break
			}
		}
		text := meta.License
		if !isOpenLicenseText(text) {
			text = meta.Copyright
		}
		if isOpenLicenseText(text) {
			if a.License == "" {
				a.License = text
			}
			a.Signals = append(a.Signals, RightsSignal{Source: "metadata_license", Detail: text, Rights: RightsOpen})
		}
	}

	a.Rights = RightsUnknown
	for _, s := range a.Signals {
		if s.Rights == RightsRestricted {
			a.Rights = RightsRestricted
			break
		}
		if s.Rights == RightsOpen {
			a.Rights = RightsOpen
		}
	}
	return a
}

func domainRights(rawURL string) Rights {
	if rawURL == "" {
		return RightsUnknown
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return RightsUnknown
	}
	host, p := strings.ToLower(u.Host), strings.ToLower(u.Path)
	for _, d := range StockDomains {
		if host != "" && strings.Contains(host, d) {
			return RightsRestricted
		}
	}
	for _, pat := range StockURLPatterns {
		if strings.Contains(p, pat) {
			return RightsRestricted
		}
	}
	for _, d := range OpenDomains {
		if host != "" && strings.Contains(host, d) {
			return RightsOpen
		}
	}
	return RightsUnknown
}

func isOpenLicenseText(s string) bool {
	if s == "" {
		return false
	}
	if IsCCLicenseURL(s) {
		return true
	}
	lower := strings.ToLower(s)
	for _, t := range openLicenseTerms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
