// Package visibility decides what a viewer may see of a post or comment.
//
// Every function here is pure: callers fetch rows, the engine decides what
// is disclosed. Listing, detail and nested views share the same CanSee
// predicate and differ only in how a refusal is expressed.
package visibility

import (
	"errors"

	"cloudysky/internal/models"
)

const (
	// PreviewLimit is the number of runes kept by Preview.
	PreviewLimit = 50
	// ContinuationMarker is appended to truncated previews.
	ContinuationMarker = "..."
	// RedactionMarker replaces nested content the viewer may not read.
	RedactionMarker = "[hidden by moderator]"
)

// ErrNotPermitted is returned by ForDetail when the viewer may not see the item.
var ErrNotPermitted = errors.New("content not permitted for viewer")

// Class labels an item relative to the viewer.
type Class string

const (
	ClassOwn    Class = "own"
	ClassHidden Class = "hidden"
	ClassOther  Class = "other"
)

// Projection selects between preview and full content.
type Projection int

const (
	Full Projection = iota
	Previewed
)

// Item is the slice of a post or comment the engine needs.
type Item struct {
	IsHidden bool
	AuthorID uint
	Content  string
}

// PostItem adapts a post.
func PostItem(p *models.Post) Item {
	return Item{IsHidden: p.IsHidden, AuthorID: p.AuthorID, Content: p.Content}
}

// CommentItem adapts a comment.
func CommentItem(c *models.Comment) Item {
	return Item{IsHidden: c.IsHidden, AuthorID: c.AuthorID, Content: c.Content}
}

// Decision is what the viewer is allowed to learn about one item.
type Decision struct {
	Content  string
	Class    Class
	Redacted bool
}

// CanSee reports whether the viewer may read the item's content.
func CanSee(v models.Viewer, it Item) bool {
	return !it.IsHidden || v.IsStaff || v.Is(it.AuthorID)
}

// Classify labels the item for the viewer. Ownership is checked first so an
// author always sees their own content as "own", hidden or not.
func Classify(v models.Viewer, it Item) Class {
	switch {
	case v.Is(it.AuthorID):
		return ClassOwn
	case it.IsHidden:
		return ClassHidden
	default:
		return ClassOther
	}
}

// Preview truncates s to PreviewLimit runes followed by ContinuationMarker.
// Strings of PreviewLimit runes or fewer are returned unchanged.
func Preview(s string) string {
	runes := []rune(s)
	if len(runes) <= PreviewLimit {
		return s
	}
	return string(runes[:PreviewLimit]) + ContinuationMarker
}

func project(content string, p Projection) string {
	if p == Previewed {
		return Preview(content)
	}
	return content
}

// ForListing returns the decision for an item in a list. The second result is
// false when the item must be left out of the list entirely.
func ForListing(v models.Viewer, it Item, p Projection) (Decision, bool) {
	if !CanSee(v, it) {
		return Decision{}, false
	}
	return Decision{Content: project(it.Content, p), Class: Classify(v, it)}, true
}

// ForDetail returns the full decision for a directly requested item, or
// ErrNotPermitted. It never produces a redacted record.
func ForDetail(v models.Viewer, it Item) (Decision, error) {
	if !CanSee(v, it) {
		return Decision{}, ErrNotPermitted
	}
	return Decision{Content: it.Content, Class: Classify(v, it)}, nil
}

// ForNested returns the decision for an item shown inside a visible parent.
// Content the viewer may not read is replaced by RedactionMarker.
func ForNested(v models.Viewer, it Item, p Projection) Decision {
	if !CanSee(v, it) {
		return Decision{Content: RedactionMarker, Class: Classify(v, it), Redacted: true}
	}
	return Decision{Content: project(it.Content, p), Class: Classify(v, it)}
}
