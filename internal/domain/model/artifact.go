package model

import (
	"net/http"
	"net/url"
	"strings"
)

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// DetectImageType sniffs data and reports the MIME type when it is one of the
// accepted input formats (PNG, JPEG, WebP).
func DetectImageType(data []byte) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	mime := http.DetectContentType(data)
	if _, ok := imageExtensions[mime]; !ok {
		return mime, false
	}
	return mime, true
}

// ImageExtension maps an accepted MIME type to its file extension.
func ImageExtension(mime string) string {
	if ext, ok := imageExtensions[mime]; ok {
		return ext
	}
	return ".bin"
}

// OwnerRefPrefix is the reference prefix under which every artifact of ownerID lives.
func OwnerRefPrefix(ownerID string) string {
	seg := url.PathEscape(ownerID)
	if seg == "." || seg == ".." {
		seg = "_" + seg
	}
	return "owners/" + seg + "/"
}

// RefOwnedBy reports whether ref was issued for ownerID.
func RefOwnedBy(ref, ownerID string) bool {
	prefix := OwnerRefPrefix(ownerID)
	return strings.HasPrefix(ref, prefix) && len(ref) > len(prefix) &&
		!strings.Contains(ref[len(prefix):], "/")
}
