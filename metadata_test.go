package artstyle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArtworkMetadata_Attribution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		meta *ArtworkMetadata
		want string
	}{
		{name: "nil", meta: nil, want: ""},
		{name: "empty", meta: &ArtworkMetadata{}, want: ""},
		{name: "artist only", meta: &ArtworkMetadata{Artist: "Jivya Soma Mashe"}, want: "Jivya Soma Mashe"},
		{name: "title only", meta: &ArtworkMetadata{Title: "Harvest"}, want: "Harvest"},
		{name: "title and artist", meta: &ArtworkMetadata{Title: "Harvest", Artist: "Jivya Soma Mashe"}, want: "Harvest by Jivya Soma Mashe"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.meta.Attribution())
		})
	}
}

func TestTagField(t *testing.T) {
	t.Parallel()

	meta := &ArtworkMetadata{}
	for tag, want := range map[string]*string{
		"Artist":           &meta.Artist,
		"Byline":           &meta.Artist,
		"Creator":          &meta.Artist,
		"CopyrightNotice":  &meta.Copyright,
		"Rights":           &meta.Copyright,
		"ObjectName":       &meta.Title,
		"ImageDescription": &meta.Description,
		"CreatorTool":      &meta.Software,
		"DateTimeOriginal": &meta.Created,
	} {
		assert.Same(t, want, tagField(meta, tag), tag)
	}
	assert.Nil(t, tagField(meta, "Orientation"))
}

func TestExtractArtworkMetadata_NilAndEmpty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "nil data returns nil", data: nil},
		{name: "empty data returns nil", data: []byte{}},
		{name: "garbage data returns nil", data: []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x11, 0x22, 0x33}},
		{name: "gif has no metadata reader", data: makeGIF(t, 8, 8)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Nil(t, ExtractArtworkMetadata(tc.data))
		})
	}
}

func TestTagValueString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		v    any
		want string
	}{
		{name: "string", v: "Sita Devi", want: "Sita Devi"},
		{name: "string slice", v: []string{"first", "second"}, want: "first"},
		{name: "empty string slice", v: []string{}, want: ""},
		{name: "any slice", v: []any{"alt"}, want: "alt"},
		{name: "any slice non-string", v: []any{42}, want: ""},
		{name: "int", v: 7, want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tagValueString(tc.v))
		})
	}
}
