//go:build !integration

package model

import "testing"

func TestDetectImageType(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		mime string
		ok   bool
	}{
		{"png", []byte("\x89PNG\r\n\x1a\nrest"), "image/png", true},
		{"jpeg", []byte("\xFF\xD8\xFF\xE0rest"), "image/jpeg", true},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 rest"), "image/webp", true},
		{"text", []byte("hello world"), "text/plain; charset=utf-8", false},
		{"empty", nil, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mime, ok := DetectImageType(tc.data)
			if mime != tc.mime || ok != tc.ok {
				t.Errorf("got (%q, %v), want (%q, %v)", mime, ok, tc.mime, tc.ok)
			}
		})
	}
}

func TestRefOwnedBy(t *testing.T) {
	if !RefOwnedBy("owners/alice/abc.png", "alice") {
		t.Error("alice should own her ref")
	}
	if RefOwnedBy("owners/alice/abc.png", "bob") {
		t.Error("bob must not own alice's ref")
	}
	if RefOwnedBy("owners/alice/", "alice") {
		t.Error("bare prefix is not a ref")
	}
	if RefOwnedBy("owners/alice/../bob/x.png", "alice") {
		t.Error("nested paths are not refs")
	}
	if got := OwnerRefPrefix("a/b"); got != "owners/a%2Fb/" {
		t.Errorf("owner ids must be escaped, got %q", got)
	}
	if got := OwnerRefPrefix(".."); got != "owners/_../" {
		t.Errorf("dot segments must be neutralized, got %q", got)
	}
}
