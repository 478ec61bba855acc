// Package route parses and canonicalizes location fragments of the web client.
//
// Every fragment normalizes to one of four shapes:
//
//	#<folder>/<page>/show
//	#<folder>/<page>/show/<id>
//	#<folder>/<page>/write
//	#<folder>/<page>/write/draft/<id>
package route

import (
	"strconv"
	"strings"
)

// Marker is the character that starts every fragment.
const Marker = "#"

const (
	DefaultFolder = "inbox"
	DefaultPage   = "p0"

	draftSegment = "draft"
)

// Mode is the view mode of a route.
type Mode string

const (
	ModeShow  Mode = "show"
	ModeWrite Mode = "write"
)

// Route is the structured form of a canonical fragment.
type Route struct {
	Folder string
	Page   string
	Mode   Mode
	// MessageID is set only in show mode.
	MessageID string
	// Draft and DraftID are set only in write mode.
	Draft   bool
	DraftID string
}

// Parse splits a raw fragment into a Route, substituting defaults for
// missing or invalid segments. It never fails.
func Parse(raw string) Route {
	segments := strings.Split(strings.TrimPrefix(raw, Marker), "/")

	r := Route{
		Folder: segment(segments, 0),
		Page:   segment(segments, 1),
		Mode:   Mode(segment(segments, 2)),
	}

	if r.Folder == "" {
		r.Folder = DefaultFolder
	}
	if !validPage(r.Page) {
		r.Page = DefaultPage
	}
	if r.Mode != ModeShow && r.Mode != ModeWrite {
		r.Mode = ModeShow
	}

	switch r.Mode {
	case ModeShow:
		r.MessageID = segment(segments, 3)
	case ModeWrite:
		draftID := segment(segments, 4)
		if segment(segments, 3) == draftSegment && draftID != "" {
			r.Draft = true
			r.DraftID = draftID
		}
	}

	return r
}

// Normalize returns the canonical form of a raw fragment.
// Normalize(Normalize(x)) == Normalize(x) for every x.
func Normalize(raw string) string {
	return Parse(raw).String()
}

// String renders the route in its canonical form, including the marker.
func (r Route) String() string {
	var b strings.Builder
	b.WriteString(Marker)
	b.WriteString(r.Folder)
	b.WriteString("/")
	b.WriteString(r.Page)
	b.WriteString("/")
	b.WriteString(string(r.Mode))

	switch r.Mode {
	case ModeShow:
		if r.MessageID != "" {
			b.WriteString("/")
			b.WriteString(r.MessageID)
		}
	case ModeWrite:
		if r.Draft && r.DraftID != "" {
			b.WriteString("/" + draftSegment + "/")
			b.WriteString(r.DraftID)
		}
	}

	return b.String()
}

// PageIndex returns the numeric part of Page. Pages too large to fit an int
// are treated as the first page.
func (r Route) PageIndex() int {
	n, err := strconv.Atoi(strings.TrimPrefix(r.Page, "p"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// List returns the show route of the same folder and page without a selection.
func (r Route) List() Route {
	return Route{Folder: r.Folder, Page: r.Page, Mode: ModeShow}
}

// WithMessage returns the show route selecting the given message.
func (r Route) WithMessage(id string) Route {
	return Route{Folder: r.Folder, Page: r.Page, Mode: ModeShow, MessageID: id}
}

// WithDraft returns the write route editing the given draft.
func (r Route) WithDraft(id string) Route {
	return Route{Folder: r.Folder, Page: r.Page, Mode: ModeWrite, Draft: id != "", DraftID: id}
}

// InFolder returns the first list page of another folder.
func InFolder(folder string) Route {
	return Route{Folder: folder, Page: DefaultPage, Mode: ModeShow}
}

func segment(segments []string, i int) string {
	if i < len(segments) {
		return segments[i]
	}
	return ""
}

// validPage reports whether page is "p" followed by one or more ASCII digits.
func validPage(page string) bool {
	if len(page) < 2 || page[0] != 'p' {
		return false
	}
	for _, c := range page[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
