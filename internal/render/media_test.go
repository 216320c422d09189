package render

import (
	"testing"
)

func TestResolveThumbnail(t *testing.T) {
	tests := []struct {
		name   string
		ref    string
		base   string
		want   string
		wantOK bool
	}{
		{"relative against origin", "/uploads/x.png", "http://host:1337/api/things", "http://host:1337/uploads/x.png", true},
		{"relative without slash", "uploads/x.png", "http://host:1337/api/things", "http://host:1337/uploads/x.png", true},
		{"absolute unchanged", "https://cdn.example/x.png", "http://host:1337/api/things", "https://cdn.example/x.png", true},
		{"absolute with bad base", "https://cdn.example/x.png", "not a url", "https://cdn.example/x.png", true},
		{"relative with bad base", "/uploads/x.png", "not a url", "", false},
		{"empty ref", "", "http://host", "", false},
		{"blank ref", "   ", "http://host", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveThumbnail(tt.ref, tt.base)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ResolveThumbnail(%q, %q) = %q, %v; want %q, %v", tt.ref, tt.base, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestMedia_Tiles(t *testing.T) {
	items := parse(t, `[
		{"name":"cat.png","mime":"image/png","ext":".png","url":"/uploads/cat.png","width":640,"height":480,"size":12.34,
		 "formats":{"thumbnail":{"url":"/uploads/thumbnail_cat.png"}}},
		{"mime":"image/jpeg","url":"https://cdn.example/photos/dog.jpg"},
		{"mime":"application/pdf","url":"","caption":"Report"}
	]`).Elements()

	tiles := Media(items, "http://host:1337/api/upload/files")
	if len(tiles) != 3 {
		t.Fatalf("len(tiles) = %d, want 3", len(tiles))
	}

	first := tiles[0]
	if first.ThumbnailURL != "http://host:1337/uploads/thumbnail_cat.png" {
		t.Errorf("ThumbnailURL = %q, want the thumbnail format", first.ThumbnailURL)
	}
	if first.Label != "cat.png" {
		t.Errorf("Label = %q, want cat.png", first.Label)
	}
	if first.Dimensions != "640x480" {
		t.Errorf("Dimensions = %q, want 640x480", first.Dimensions)
	}
	if first.SizeKB == nil || *first.SizeKB != 12.34 {
		t.Errorf("SizeKB = %v, want 12.34", first.SizeKB)
	}
	if first.FileType != "PNG" {
		t.Errorf("FileType = %q, want PNG", first.FileType)
	}
	if first.Placeholder {
		t.Error("Placeholder = true, want false")
	}

	second := tiles[1]
	if second.ThumbnailURL != "https://cdn.example/photos/dog.jpg" {
		t.Errorf("ThumbnailURL = %q, want absolute url unchanged", second.ThumbnailURL)
	}
	if second.Label != "dog.jpg" {
		t.Errorf("Label = %q, want dog.jpg from url", second.Label)
	}
	if second.FileType != "JPEG" {
		t.Errorf("FileType = %q, want JPEG from mime", second.FileType)
	}
	if second.Dimensions != "" || second.SizeKB != nil {
		t.Errorf("optional fields = %q, %v; want empty", second.Dimensions, second.SizeKB)
	}

	third := tiles[2]
	if !third.Placeholder || third.ThumbnailURL != "" {
		t.Errorf("tile = %+v, want placeholder", third)
	}
	if third.Label != "Report" {
		t.Errorf("Label = %q, want Report", third.Label)
	}
}

func TestMedia_Empty(t *testing.T) {
	if tiles := Media(nil, "http://host"); tiles == nil || len(tiles) != 0 {
		t.Errorf("Media(nil) = %v, want empty slice", tiles)
	}
}
