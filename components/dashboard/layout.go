package dashboard

// GridColumns is the number of columns available to every rendered row.
const GridColumns = 12

// WidgetType discriminates the widget union.
type WidgetType string

const (
	WidgetInsight     WidgetType = "insight"
	WidgetKPI         WidgetType = "kpi"
	WidgetPlaceholder WidgetType = "placeholder"
)

// Layout is an ordered list of sections.
type Layout struct {
	Sections []Section `json:"sections" yaml:"sections"`
}

// Section groups items under an optional header.
type Section struct {
	Header SectionHeader `json:"header,omitempty" yaml:"header,omitempty"`
	Items  []Item        `json:"items" yaml:"items"`
}

// SectionHeader is the optional title block of a section.
type SectionHeader struct {
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Item places a widget in the grid.
type Item struct {
	Widget Widget   `json:"widget" yaml:"widget"`
	Size   ItemSize `json:"size" yaml:"size"`
}

// ItemSize carries the authored xl size plus optional per-breakpoint overrides.
type ItemSize struct {
	XL SizeInfo  `json:"xl" yaml:"xl"`
	LG *SizeInfo `json:"lg,omitempty" yaml:"lg,omitempty"`
	MD *SizeInfo `json:"md,omitempty" yaml:"md,omitempty"`
	SM *SizeInfo `json:"sm,omitempty" yaml:"sm,omitempty"`
	XS *SizeInfo `json:"xs,omitempty" yaml:"xs,omitempty"`
}

// SizeInfo is a grid width plus either a grid height or a height/width ratio (percent).
type SizeInfo struct {
	GridWidth     int     `json:"gridWidth" yaml:"gridWidth"`
	GridHeight    int     `json:"gridHeight,omitempty" yaml:"gridHeight,omitempty"`
	HeightAsRatio float64 `json:"heightAsRatio,omitempty" yaml:"heightAsRatio,omitempty"`
}

// Widget is the dashboard tile referenced by a layout item.
type Widget struct {
	Type                   WidgetType        `json:"type" yaml:"type"`
	Ref                    ObjRef            `json:"ref,omitempty" yaml:"ref,omitempty"`
	LocalIdentifier        string            `json:"localIdentifier,omitempty" yaml:"localIdentifier,omitempty"`
	Title                  string            `json:"title,omitempty" yaml:"title,omitempty"`
	Insight                ObjRef            `json:"insight,omitempty" yaml:"insight,omitempty"`
	Measure                ObjRef            `json:"measure,omitempty" yaml:"measure,omitempty"`
	IgnoreDashboardFilters []ObjRef          `json:"ignoreDashboardFilters,omitempty" yaml:"ignoreDashboardFilters,omitempty"`
	DateDataSet            *ObjRef           `json:"dateDataSet,omitempty" yaml:"dateDataSet,omitempty"`
	Drills                 []DrillDefinition `json:"drills,omitempty" yaml:"drills,omitempty"`
}

// Identity names the widget in messages. Placeholders without a ref or local
// identifier return an empty string.
func (w Widget) Identity() string {
	if !w.Ref.IsZero() {
		return w.Ref.String()
	}
	return w.LocalIdentifier
}

// SameWidget reports whether both widgets point at one object. Refs are
// compared with ObjRef.Equal so a typed and an untyped identifier match,
// and local identifiers must be unique on their own.
func (w Widget) SameWidget(other Widget) bool {
	if w.Ref.Equal(other.Ref) {
		return true
	}
	return w.LocalIdentifier != "" && w.LocalIdentifier == other.LocalIdentifier
}

func isPlaced(placed []Widget, w Widget) bool {
	for _, candidate := range placed {
		if candidate.SameWidget(w) {
			return true
		}
	}
	return false
}

// Clone deep copies the layout.
func (l Layout) Clone() Layout {
	if l.Sections == nil {
		return Layout{}
	}
	out := Layout{Sections: make([]Section, len(l.Sections))}
	for i, section := range l.Sections {
		out.Sections[i] = section.Clone()
	}
	return out
}

// Clone deep copies the section.
func (s Section) Clone() Section {
	return Section{Header: s.Header, Items: cloneItems(s.Items)}
}

// Clone deep copies the item.
func (i Item) Clone() Item {
	return Item{Widget: i.Widget.Clone(), Size: i.Size.Clone()}
}

// Clone deep copies the size.
func (s ItemSize) Clone() ItemSize {
	out := ItemSize{XL: s.XL}
	out.LG = cloneSizeInfo(s.LG)
	out.MD = cloneSizeInfo(s.MD)
	out.SM = cloneSizeInfo(s.SM)
	out.XS = cloneSizeInfo(s.XS)
	return out
}

// Clone deep copies the widget.
func (w Widget) Clone() Widget {
	out := w
	out.IgnoreDashboardFilters = cloneRefs(w.IgnoreDashboardFilters)
	out.DateDataSet = cloneRefPtr(w.DateDataSet)
	if w.Drills != nil {
		out.Drills = make([]DrillDefinition, len(w.Drills))
		for i, drill := range w.Drills {
			out.Drills[i] = drill.Clone()
		}
	}
	return out
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return []Item{}
	}
	out := make([]Item, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

func cloneSizeInfo(size *SizeInfo) *SizeInfo {
	if size == nil {
		return nil
	}
	out := *size
	return &out
}

// SectionCount returns the number of sections.
func (l Layout) SectionCount() int {
	return len(l.Sections)
}

// ItemCount returns the number of items of a section or -1 when the index is invalid.
func (l Layout) ItemCount(sectionIndex int) int {
	if sectionIndex < 0 || sectionIndex >= len(l.Sections) {
		return -1
	}
	return len(l.Sections[sectionIndex].Items)
}

// Widgets walks the layout in order.
func (l Layout) Widgets() []Widget {
	var widgets []Widget
	for _, section := range l.Sections {
		for _, item := range section.Items {
			widgets = append(widgets, item.Widget)
		}
	}
	return widgets
}

// FindWidget locates a widget by ref or local identifier.
func (l Layout) FindWidget(ref ObjRef, localID string) (Widget, int, int, bool) {
	for si, section := range l.Sections {
		for ii, item := range section.Items {
			w := item.Widget
			if (!ref.IsZero() && w.Ref.Equal(ref)) || (localID != "" && w.LocalIdentifier == localID) {
				return w, si, ii, true
			}
		}
	}
	return Widget{}, -1, -1, false
}

func clampWidth(width int) int {
	if width < 0 || width > GridColumns {
		return GridColumns
	}
	return width
}
