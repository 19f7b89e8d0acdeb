package domain

import (
	"net/url"
	"strings"
)

// Platform is the source platform name recorded in delivery events.
const Platform = "tiktok"

// IsSupportedLink reports whether the text looks like a link this
// service can resolve. Classification of kind happens separately.
func IsSupportedLink(rawURL string) bool {
	_, err := ClassifyLink(rawURL)
	return err == nil
}

// ClassifyLink validates the link and determines the media kind from
// its path marker: /photo/ posts are slideshows, everything else on the
// platform is treated as a video.
func ClassifyLink(rawURL string) (MediaKind, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", ErrUnsupportedURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrUnsupportedURL
	}

	host := strings.ToLower(u.Hostname())
	if host != "tiktok.com" && !strings.HasSuffix(host, ".tiktok.com") {
		return "", ErrUnsupportedURL
	}

	if strings.Contains(u.Path, "/photo/") {
		return KindSlideshow, nil
	}
	return KindVideo, nil
}
