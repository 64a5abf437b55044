package threads

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxTextLength    = 500
	MinCarouselItems = 2
	MaxCarouselItems = 20
)

var ErrInvalidContent = errors.New("invalid post content")

// Content is one of TextPost, ImagePost, VideoPost or CarouselPost.
type Content interface {
	mediaType() string
}

type TextPost struct {
	Text           string
	LinkAttachment string
}

type ImagePost struct {
	Text     string
	ImageURL string
}

type VideoPost struct {
	Text     string
	VideoURL string
}

// CarouselItem is a single image or video of a carousel. Kind is "image" or "video".
type CarouselItem struct {
	Kind string
	URL  string
}

type CarouselPost struct {
	Text  string
	Items []CarouselItem
}

func (TextPost) mediaType() string     { return "TEXT" }
func (ImagePost) mediaType() string    { return "IMAGE" }
func (VideoPost) mediaType() string    { return "VIDEO" }
func (CarouselPost) mediaType() string { return "CAROUSEL" }

// BuildContent validates the raw post fields and returns the matching variant.
// kind is one of text, image, video or carousel. For carousels, items take
// precedence over mediaURLs; bare URLs are treated as images.
func BuildContent(kind, text string, mediaURLs []string, link string, items []CarouselItem) (Content, error) {
	if utf8.RuneCountInString(text) > MaxTextLength {
		return nil, fmt.Errorf("%w: text exceeds %d characters", ErrInvalidContent, MaxTextLength)
	}

	switch kind {
	case "text":
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: text post requires content", ErrInvalidContent)
		}
		if len(mediaURLs) > 0 {
			return nil, fmt.Errorf("%w: text post cannot carry media", ErrInvalidContent)
		}
		return TextPost{Text: text, LinkAttachment: link}, nil
	case "image":
		url, err := singleURL(kind, mediaURLs)
		if err != nil {
			return nil, err
		}
		return ImagePost{Text: text, ImageURL: url}, nil
	case "video":
		url, err := singleURL(kind, mediaURLs)
		if err != nil {
			return nil, err
		}
		return VideoPost{Text: text, VideoURL: url}, nil
	case "carousel":
		if len(items) == 0 {
			for _, u := range mediaURLs {
				items = append(items, CarouselItem{Kind: "image", URL: u})
			}
		}
		if len(items) < MinCarouselItems || len(items) > MaxCarouselItems {
			return nil, fmt.Errorf("%w: carousel needs between %d and %d items, got %d",
				ErrInvalidContent, MinCarouselItems, MaxCarouselItems, len(items))
		}
		for i, item := range items {
			if item.Kind != "image" && item.Kind != "video" {
				return nil, fmt.Errorf("%w: carousel item %d has unsupported kind %q", ErrInvalidContent, i, item.Kind)
			}
			if item.URL == "" {
				return nil, fmt.Errorf("%w: carousel item %d has no url", ErrInvalidContent, i)
			}
		}
		return CarouselPost{Text: text, Items: items}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported media type %q", ErrInvalidContent, kind)
	}
}

func singleURL(kind string, mediaURLs []string) (string, error) {
	if len(mediaURLs) != 1 || mediaURLs[0] == "" {
		return "", fmt.Errorf("%w: %s post requires exactly one media url", ErrInvalidContent, kind)
	}
	return mediaURLs[0], nil
}
