package domain

import (
	"regexp"
	"strconv"
)

var (
	// https://t.me/channel/123, https://t.me/channel/123?comment=456,
	// https://telegram.me/channel/123, https://telegram.dog/channel/123
	telegramURLPattern = regexp.MustCompile(`(?:https?://)?(?:t\.me|telegram\.me|telegram\.dog)/([^/?]+)/(\d+)`)

	// https://www.instagram.com/p/ABC123/
	instagramURLPattern = regexp.MustCompile(`(?:https?://)?(?:www\.)?instagram\.com/p/([^/?]+)/?`)
)

// TelegramLink addresses one channel message.
type TelegramLink struct {
	Username  string
	MessageID int
}

// InstagramLink addresses one Instagram post.
type InstagramLink struct {
	Code string
}

// ParseTelegramURL extracts the channel username and message id from a post link.
func ParseTelegramURL(rawURL string) (TelegramLink, bool) {
	m := telegramURLPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return TelegramLink{}, false
	}

	id, err := strconv.Atoi(m[2])
	if err != nil {
		return TelegramLink{}, false
	}

	return TelegramLink{Username: m[1], MessageID: id}, true
}

// ParseInstagramURL extracts the shortcode from a post link.
func ParseInstagramURL(rawURL string) (InstagramLink, bool) {
	m := instagramURLPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return InstagramLink{}, false
	}

	return InstagramLink{Code: m[1]}, true
}

// PlatformFromURL detects which platform a post URL belongs to.
func PlatformFromURL(rawURL string) (Platform, bool) {
	if _, ok := ParseInstagramURL(rawURL); ok {
		return PlatformInstagram, true
	}

	if _, ok := ParseTelegramURL(rawURL); ok {
		return PlatformTelegram, true
	}

	return "", false
}
