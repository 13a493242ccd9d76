// Package nav describes the site navigation bar.
package nav

import "strings"

// Link is one entry in the navigation bar.
type Link struct {
	Label  string `json:"label"`
	Href   string `json:"href"`
	Active bool   `json:"active"`
}

// View is the render description of the navigation bar.
type View struct {
	Revealed bool   `json:"revealed"`
	Links    []Link `json:"links"`
}

var links = []Link{
	{Label: "VERIFY", Href: "/"},
	{Label: "FORGOT PASSWORD", Href: "/forgot-password"},
	{Label: "RESEND VERIFICATION", Href: "/resend-verification"},
}

// Render returns the navigation bar for path. The empty path is the root.
// The bar stays collapsed unless revealed (hover or keyboard focus).
func Render(path string, revealed bool) View {
	current := normalize(path)
	out := make([]Link, len(links))
	for i, link := range links {
		link.Active = link.Href == current
		out[i] = link
	}
	return View{Revealed: revealed, Links: out}
}

// Active returns the active link of v, if any.
func (v View) Active() (Link, bool) {
	for _, link := range v.Links {
		if link.Active {
			return link, true
		}
	}
	return Link{}, false
}

func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}
