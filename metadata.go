package artstyle

import (
	"bytes"
	"image"
	"strings"

	"github.com/bep/imagemeta"
)

// ArtworkMetadata holds the attribution fields of an uploaded artwork found in
// its EXIF, IPTC and XMP blocks.
type ArtworkMetadata struct {
	Artist      string `json:"artist,omitempty"`
	Copyright   string `json:"copyright,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Software    string `json:"software,omitempty"`
	Created     string `json:"created,omitempty"`
	License     string `json:"license,omitempty"` // XMP web statement or usage terms
}

// Attribution returns "Title by Artist" with whichever parts are known.
func (m *ArtworkMetadata) Attribution() string {
	if m == nil {
		return ""
	}
	switch {
	case m.Title != "" && m.Artist != "":
		return m.Title + " by " + m.Artist
	case m.Title != "":
		return m.Title
	default:
		return m.Artist
	}
}

// metadataFormats maps image.DecodeConfig format names to imagemeta formats.
// Formats without a metadata reader are absent.
var metadataFormats = map[string]imagemeta.ImageFormat{
	"jpeg": imagemeta.JPEG,
	"png":  imagemeta.PNG,
	"webp": imagemeta.WebP,
	"tiff": imagemeta.TIFF,
}

// wantedTags maps (source, tag-name) → true for every tag we care about.
// The first non-empty value seen for a field wins.
var wantedTags = map[imagemeta.Source]map[string]bool{
	imagemeta.EXIF: {
		"Artist":           true,
		"Copyright":        true,
		"ImageDescription": true,
		"Software":         true,
		"DateTimeOriginal": true,
	},
	imagemeta.IPTC: {
		"Byline":          true,
		"CopyrightNotice": true,
		"ObjectName":      true,
		"Caption":         true,
	},
	imagemeta.XMP: {
		"Creator":      true,
		"Rights":       true,
		"Title":        true,
		"Description":  true,
		"CreatorTool":  true,
		"CreateDate":   true,
		"WebStatement": true,
		"UsageTerms":   true,
	},
}

// tagField maps a tag name to the metadata field it fills.
func tagField(meta *ArtworkMetadata, tag string) *string {
	switch tag {
	case "Artist", "Byline", "Creator":
		return &meta.Artist
	case "Copyright", "CopyrightNotice", "Rights":
		return &meta.Copyright
	case "ObjectName", "Title":
		return &meta.Title
	case "ImageDescription", "Caption", "Description":
		return &meta.Description
	case "Software", "CreatorTool":
		return &meta.Software
	case "DateTimeOriginal", "CreateDate":
		return &meta.Created
	case "WebStatement", "UsageTerms":
		return &meta.License
	}
	return nil
}

// ExtractArtworkMetadata parses EXIF/IPTC/XMP metadata from raw image bytes.
// Returns nil if the data is empty, in an unsupported format, or carries none
// of the wanted fields. Graceful degradation: never returns an error.
func ExtractArtworkMetadata(data []byte) *ArtworkMetadata {
	if len(data) == 0 {
		return nil
	}
	_, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	format, ok := metadataFormats[name]
	if !ok {
		return nil
	}

	meta := &ArtworkMetadata{}
	found := false

	_, err = imagemeta.Decode(imagemeta.Options{
		R:           bytes.NewReader(data),
		ImageFormat: format,
		Sources:     imagemeta.EXIF | imagemeta.IPTC | imagemeta.XMP,
		ShouldHandleTag: func(ti imagemeta.TagInfo) bool {
			if tags, ok := wantedTags[ti.Source]; ok {
				return tags[ti.Tag]
			}
			return false
		},
		HandleTag: func(ti imagemeta.TagInfo) error {
			field := tagField(meta, ti.Tag)
			if field == nil || *field != "" {
				return nil
			}
			if s := strings.TrimSpace(tagValueString(ti.Value)); s != "" {
				*field = s
				found = true
			}
			return nil
		},
	})

	if err != nil || !found {
		return nil
	}
	return meta
}

// tagValueString extracts a string from a tag value.
// XMP values may be string or []string (from altList/seqList).
func tagValueString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		if len(val) > 0 {
			return val[0]
		}
		return ""
	case []any:
		if len(val) > 0 {
			if s, ok := val[0].(string); ok {
				return s
			}
		}
		return ""
	default:
		return ""
	}
}
