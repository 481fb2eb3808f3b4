package fetcher

import (
	"net/url"
	"strings"
)

// Platform is a video site the fetcher can download from.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
)

// Known hosts. Subdomains of the registered domains are accepted too.
var platformByHost = map[string]Platform{
	"youtube.com":       PlatformYouTube,
	"www.youtube.com":   PlatformYouTube,
	"m.youtube.com":     PlatformYouTube,
	"music.youtube.com": PlatformYouTube,
	"youtu.be":          PlatformYouTube,

	"tiktok.com":     PlatformTikTok,
	"www.tiktok.com": PlatformTikTok,
	"m.tiktok.com":   PlatformTikTok,
	"vm.tiktok.com":  PlatformTikTok,
	"vt.tiktok.com":  PlatformTikTok,

	"instagram.com":     PlatformInstagram,
	"www.instagram.com": PlatformInstagram,
	"m.instagram.com":   PlatformInstagram,
}

var registeredDomains = map[string]Platform{
	"youtube.com":   PlatformYouTube,
	"tiktok.com":    PlatformTikTok,
	"instagram.com": PlatformInstagram,
}

// formatByPlatform holds the yt-dlp format selector per platform.
var formatByPlatform = map[Platform]string{
	PlatformYouTube:   "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
	PlatformTikTok:    "best[ext=mp4]/best",
	PlatformInstagram: "best[ext=mp4]/best",
}

// Format returns the yt-dlp format selector for p.
func (p Platform) Format() string {
	if f, ok := formatByPlatform[p]; ok {
		return f
	}
	return "best[ext=mp4]/best"
}

// Detect returns the platform for a page URL.
func Detect(raw string) (Platform, bool) {
	host := hostOf(raw)
	if host == "" {
		return "", false
	}
	if p, ok := platformByHost[host]; ok {
		return p, true
	}
	for domain, p := range registeredDomains {
		if strings.HasSuffix(host, "."+domain) {
			return p, true
		}
	}
	return "", false
}

func hostOf(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme == "" {
		// Best effort: treat as https.
		if u, err = url.Parse("https://" + raw); err != nil {
			return ""
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	h := strings.ToLower(u.Hostname())
	return strings.TrimSuffix(h, ".")
}
