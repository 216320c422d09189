package render

import (
	"net/url"
	"path"
	"strings"

	"github.com/jpalmerr/resourceboard/internal/jsonvalue"
)

// MediaTile is one rendered file in a media gallery.
//
// ThumbnailURL is empty and Placeholder is true when no usable image URL
// could be resolved.
type MediaTile struct {
	ThumbnailURL string   `json:"thumbnail_url,omitempty"`
	Label        string   `json:"label"`
	Dimensions   string   `json:"dimensions,omitempty"`
	SizeKB       *float64 `json:"size_kb,omitempty"`
	FileType     string   `json:"file_type,omitempty"`
	Placeholder  bool     `json:"placeholder"`
}

// Media renders file records as gallery tiles. Relative image URLs are
// resolved against the origin of baseURL, the URL of the resource that
// returned the items.
func Media(items []jsonvalue.Value, baseURL string) []MediaTile {
	tiles := make([]MediaTile, 0, len(items))
	for _, item := range items {
		tiles = append(tiles, mediaTile(item, baseURL))
	}
	return tiles
}

func mediaTile(record jsonvalue.Value, baseURL string) MediaTile {
	tile := MediaTile{
		Label:    mediaLabel(record),
		FileType: fileType(record),
	}

	if thumb, ok := ResolveThumbnail(thumbnailRef(record), baseURL); ok {
		tile.ThumbnailURL = thumb
	} else {
		tile.Placeholder = true
	}

	width, wOK := record.Field("width")
	height, hOK := record.Field("height")
	if wOK && hOK && width.Kind() == jsonvalue.KindNumber && height.Kind() == jsonvalue.KindNumber {
		tile.Dimensions = width.String() + "x" + height.String()
	}

	if size, ok := record.Field("size"); ok {
		if kb, ok := size.AsFloat(); ok {
			tile.SizeKB = &kb
		}
	}

	return tile
}

// thumbnailRef prefers a generated thumbnail format over the original file.
func thumbnailRef(record jsonvalue.Value) string {
	if v, ok := record.Path("formats", "thumbnail", "url"); ok {
		if s, ok := v.AsString(); ok && s != "" {
			return s
		}
	}
	if v, ok := record.Field("url"); ok {
		if s, ok := v.AsString(); ok {
			return s
		}
	}
	return ""
}

func mediaLabel(record jsonvalue.Value) string {
	for _, key := range []string{"name", "alternativeText", "caption"} {
		if v, ok := record.Field(key); ok {
			if s, ok := v.AsString(); ok && s != "" {
				return s
			}
		}
	}
	if v, ok := record.Field("url"); ok {
		if s, ok := v.AsString(); ok && s != "" {
			if u, err := url.Parse(s); err == nil && u.Path != "" {
				return path.Base(u.Path)
			}
		}
	}
	return ""
}

// fileType derives a short upper-case type from `ext` (".png") or, failing
// that, from the MIME subtype ("image/png").
func fileType(record jsonvalue.Value) string {
	if v, ok := record.Field("ext"); ok {
		if s, ok := v.AsString(); ok && s != "" {
			return strings.ToUpper(strings.TrimPrefix(s, "."))
		}
	}
	for _, key := range mimeFields {
		v, ok := record.Field(key)
		if !ok {
			continue
		}
		s, ok := v.AsString()
		if !ok {
			continue
		}
		if _, sub, found := strings.Cut(s, "/"); found && sub != "" {
			return strings.ToUpper(sub)
		}
	}
	return ""
}

var mimeFields = []string{"mime", "mimeType", "mime_type"}

// ResolveThumbnail resolves ref against the origin (scheme, host and port) of
// baseURL. Absolute references pass through unchanged. The second result is
// false when no URL can be produced.
func ResolveThumbnail(ref, baseURL string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if u.IsAbs() {
		return ref, true
	}

	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", false
	}

	origin := &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/"}
	return origin.ResolveReference(u).String(), true
}
