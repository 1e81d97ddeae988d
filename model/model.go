package model

import (
	"html/template"
	"time"
)

// NoDate is shown for posts whose timestamp is unknown.
const NoDate = "No date"

// AboutName is the post stem rendered as the about page instead of a post.
const AboutName = "about"

// Post is a rendered post held in memory.
type Post struct {
	Name         string
	EncodedName  string
	Created      time.Time
	Description  string
	RenderedPage string
}

// Date formats the post time as RFC 2822, or NoDate if unknown.
func (p Post) Date() string {
	return FormatDate(p.Created)
}

// FormatDate formats t as RFC 2822, or NoDate if t is zero.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return NoDate
	}
	return t.Format(time.RFC1123Z)
}

// PreviewPost is one entry of the index page listing.
type PreviewPost struct {
	Date         string `json:"date"`
	Description  string `json:"description"`
	EncodedName  string `json:"encoded_name"`
	OriginalName string `json:"original_name"`
}

// Page is the data passed to the page template.
type Page struct {
	Title    string
	Contents template.HTML
	IsRoot   bool
	Posts    []PreviewPost
	Public   string
	Theme    ThemeTokens
	LiveURL  string
}

// ThemeTokens carries the stylesheet design tokens into templates.
type ThemeTokens struct {
	Core     template.CSS
	FontMono template.CSS
}
