package dashboard

import (
	"sort"
	"time"
)

// DefaultHistoryLimit bounds the undo history.
const DefaultHistoryLimit = 50

// Stash maps a caller chosen identifier to previously removed items.
type Stash map[string][]Item

// Clone deep copies the stash.
func (s Stash) Clone() Stash {
	out := make(Stash, len(s))
	for id, items := range s {
		out[id] = cloneItems(items)
	}
	return out
}

// Keys returns the stash identifiers in lexical order.
func (s Stash) Keys() []string {
	keys := make([]string, 0, len(s))
	for id := range s {
		keys = append(keys, id)
	}
	sort.Strings(keys)
	return keys
}

// UndoEntry is the before-image of one undoable command.
type UndoEntry struct {
	CorrelationID string    `json:"correlationId"`
	Command       string    `json:"command"`
	RecordedAt    time.Time `json:"recordedAt"`
	Layout        Layout    `json:"-"`
	Stash         Stash     `json:"-"`
}

// State is the normalized dashboard state. It is only mutated by the
// processor; callers receive clones.
type State struct {
	Loaded        bool          `json:"loaded"`
	Ref           ObjRef        `json:"ref"`
	Title         string        `json:"title"`
	Description   string        `json:"description,omitempty"`
	Version       string        `json:"version,omitempty"`
	Updated       *time.Time    `json:"updated,omitempty"`
	Layout        Layout        `json:"layout"`
	Stash         Stash         `json:"stash"`
	FilterContext FilterContext `json:"filterContext"`
	History       []UndoEntry   `json:"history"`
}

func newState() State {
	return State{Stash: Stash{}}
}

// Clone deep copies the state.
func (s State) Clone() State {
	out := s
	out.Layout = s.Layout.Clone()
	out.Stash = s.Stash.Clone()
	out.FilterContext = s.FilterContext.Clone()
	if s.Updated != nil {
		updated := *s.Updated
		out.Updated = &updated
	}
	if s.History != nil {
		out.History = make([]UndoEntry, len(s.History))
		for i, entry := range s.History {
			entry.Layout = entry.Layout.Clone()
			entry.Stash = entry.Stash.Clone()
			out.History[i] = entry
		}
	}
	return out
}

// Document builds the persisted shape of the current state.
func (s State) Document() DashboardDocument {
	doc := DashboardDocument{
		Version:       s.Version,
		Ref:           s.Ref,
		Title:         s.Title,
		Description:   s.Description,
		Layout:        s.Layout.Clone(),
		FilterContext: s.FilterContext.Clone(),
	}
	if s.Updated != nil {
		updated := *s.Updated
		doc.Updated = &updated
	}
	return doc
}

// Section returns the section at index.
func (s State) Section(index int) (Section, bool) {
	if index < 0 || index >= len(s.Layout.Sections) {
		return Section{}, false
	}
	return s.Layout.Sections[index], true
}

// Item returns the item at the given position.
func (s State) Item(sectionIndex, itemIndex int) (Item, bool) {
	section, ok := s.Section(sectionIndex)
	if !ok || itemIndex < 0 || itemIndex >= len(section.Items) {
		return Item{}, false
	}
	return section.Items[itemIndex], true
}

// Widget finds a widget by locator.
func (s State) Widget(locator WidgetLocator) (Widget, bool) {
	widget, _, _, ok := s.Layout.FindWidget(locator.Ref, locator.LocalIdentifier)
	return widget, ok
}

// Mutation changes the state. Mutations run inside Turn.Apply.
type Mutation func(*State)

func insertSection(sections []Section, index int, section Section) []Section {
	sections = append(sections, Section{})
	copy(sections[index+1:], sections[index:])
	sections[index] = section
	return sections
}

func removeSection(sections []Section, index int) []Section {
	return append(sections[:index], sections[index+1:]...)
}

func insertItems(items []Item, index int, added ...Item) []Item {
	out := make([]Item, 0, len(items)+len(added))
	out = append(out, items[:index]...)
	out = append(out, added...)
	out = append(out, items[index:]...)
	return out
}

func removeItem(items []Item, index int) []Item {
	out := make([]Item, 0, len(items)-1)
	out = append(out, items[:index]...)
	return append(out, items[index+1:]...)
}

// resolveIndex maps -1 to fallback and reports whether the result lies in [0, max].
func resolveIndex(index, fallback, max int) (int, bool) {
	if index == -1 {
		index = fallback
	}
	return index, index >= 0 && index <= max
}
