package dashboard

// MaxAttributeFilters caps the attribute filters a filter context may hold.
const MaxAttributeFilters = 30

// DateFilterType selects relative or absolute date filters.
type DateFilterType string

const (
	DateFilterRelative DateFilterType = "relative"
	DateFilterAbsolute DateFilterType = "absolute"
)

// SelectionMode controls how many elements an attribute filter may select.
type SelectionMode string

const (
	SelectionMulti  SelectionMode = "multi"
	SelectionSingle SelectionMode = "single"
)

// FilterContext holds the dashboard filters in display order.
type FilterContext struct {
	Ref     ObjRef              `json:"ref,omitempty" yaml:"ref,omitempty"`
	Filters []FilterContextItem `json:"filters" yaml:"filters"`
}

// FilterContextItem holds exactly one of the filter variants.
type FilterContextItem struct {
	DateFilter      *DateFilter      `json:"dateFilter,omitempty" yaml:"dateFilter,omitempty"`
	AttributeFilter *AttributeFilter `json:"attributeFilter,omitempty" yaml:"attributeFilter,omitempty"`
}

// DateFilter filters by a date range. Relative From/To are offsets in Granularity units.
type DateFilter struct {
	Type        DateFilterType `json:"type" yaml:"type" validate:"required,oneof=relative absolute"`
	Granularity string         `json:"granularity,omitempty" yaml:"granularity,omitempty"`
	From        string         `json:"from,omitempty" yaml:"from,omitempty"`
	To          string         `json:"to,omitempty" yaml:"to,omitempty"`
	DataSet     *ObjRef        `json:"dataSet,omitempty" yaml:"dataSet,omitempty"`
}

// AttributeFilter filters by attribute elements of a display form.
type AttributeFilter struct {
	LocalIdentifier  string            `json:"localIdentifier" yaml:"localIdentifier"`
	DisplayForm      ObjRef            `json:"displayForm" yaml:"displayForm"`
	Title            string            `json:"title,omitempty" yaml:"title,omitempty"`
	Negative         bool              `json:"negativeSelection" yaml:"negativeSelection"`
	Elements         AttributeElements `json:"attributeElements" yaml:"attributeElements"`
	FilterElementsBy []ParentFilter    `json:"filterElementsBy,omitempty" yaml:"filterElementsBy,omitempty"`
	SelectionMode    SelectionMode     `json:"selectionMode,omitempty" yaml:"selectionMode,omitempty"`
}

// AttributeElements selects elements either by URI or by value.
type AttributeElements struct {
	URIs   []string `json:"uris,omitempty" yaml:"uris,omitempty"`
	Values []string `json:"values,omitempty" yaml:"values,omitempty"`
}

// ParentFilter makes an attribute filter's elements depend on another filter.
type ParentFilter struct {
	FilterLocalIdentifier string   `json:"filterLocalIdentifier" yaml:"filterLocalIdentifier" validate:"required"`
	Over                  []ObjRef `json:"over,omitempty" yaml:"over,omitempty"`
}

// IsAllTime reports whether an absolute/relative filter is effectively unbounded.
func (f DateFilter) IsAllTime() bool {
	return f.Type == DateFilterRelative && f.From == "" && f.To == ""
}

// IsEmpty reports whether nothing is selected.
func (e AttributeElements) IsEmpty() bool {
	return len(e.URIs) == 0 && len(e.Values) == 0
}

// Clone deep copies the elements.
func (e AttributeElements) Clone() AttributeElements {
	out := AttributeElements{}
	if e.URIs != nil {
		out.URIs = append([]string(nil), e.URIs...)
	}
	if e.Values != nil {
		out.Values = append([]string(nil), e.Values...)
	}
	return out
}

// Clone deep copies the filter.
func (f AttributeFilter) Clone() AttributeFilter {
	out := f
	out.Elements = f.Elements.Clone()
	out.FilterElementsBy = cloneParents(f.FilterElementsBy)
	return out
}

// Clone deep copies the filter.
func (f DateFilter) Clone() DateFilter {
	out := f
	out.DataSet = cloneRefPtr(f.DataSet)
	return out
}

// Clone deep copies the filter item.
func (i FilterContextItem) Clone() FilterContextItem {
	out := FilterContextItem{}
	if i.DateFilter != nil {
		df := i.DateFilter.Clone()
		out.DateFilter = &df
	}
	if i.AttributeFilter != nil {
		af := i.AttributeFilter.Clone()
		out.AttributeFilter = &af
	}
	return out
}

// Clone deep copies the filter context.
func (fc FilterContext) Clone() FilterContext {
	out := FilterContext{Ref: fc.Ref}
	if fc.Filters != nil {
		out.Filters = make([]FilterContextItem, len(fc.Filters))
		for i, item := range fc.Filters {
			out.Filters[i] = item.Clone()
		}
	}
	return out
}

func cloneParents(parents []ParentFilter) []ParentFilter {
	if parents == nil {
		return nil
	}
	out := make([]ParentFilter, len(parents))
	for i, p := range parents {
		out[i] = ParentFilter{FilterLocalIdentifier: p.FilterLocalIdentifier, Over: cloneRefs(p.Over)}
	}
	return out
}

// AttributeFilters returns the attribute filters in order.
func (fc FilterContext) AttributeFilters() []AttributeFilter {
	var out []AttributeFilter
	for _, item := range fc.Filters {
		if item.AttributeFilter != nil {
			out = append(out, *item.AttributeFilter)
		}
	}
	return out
}

// DateFilter returns the dashboard date filter when one is set.
func (fc FilterContext) DateFilter() (DateFilter, bool) {
	for _, item := range fc.Filters {
		if item.DateFilter != nil {
			return *item.DateFilter, true
		}
	}
	return DateFilter{}, false
}

// AttributeFilter looks a filter up by local identifier.
func (fc FilterContext) AttributeFilter(localID string) (AttributeFilter, int, bool) {
	idx := 0
	for _, item := range fc.Filters {
		if item.AttributeFilter == nil {
			continue
		}
		if item.AttributeFilter.LocalIdentifier == localID {
			return *item.AttributeFilter, idx, true
		}
		idx++
	}
	return AttributeFilter{}, -1, false
}

// AttributeFilterByDisplayForm looks a filter up by its display form.
func (fc FilterContext) AttributeFilterByDisplayForm(ref ObjRef) (AttributeFilter, bool) {
	for _, item := range fc.Filters {
		if item.AttributeFilter != nil && item.AttributeFilter.DisplayForm.Equal(ref) {
			return *item.AttributeFilter, true
		}
	}
	return AttributeFilter{}, false
}

// Children returns the local identifiers of filters that list parentID as a parent.
func (fc FilterContext) Children(parentID string) []string {
	var out []string
	for _, f := range fc.AttributeFilters() {
		for _, p := range f.FilterElementsBy {
			if p.FilterLocalIdentifier == parentID {
				out = append(out, f.LocalIdentifier)
				break
			}
		}
	}
	return out
}

func (fc *FilterContext) attributeFilterPtr(localID string) *AttributeFilter {
	for i := range fc.Filters {
		if af := fc.Filters[i].AttributeFilter; af != nil && af.LocalIdentifier == localID {
			return af
		}
	}
	return nil
}

// filterItemIndex maps the n-th attribute filter to its position in Filters.
func (fc FilterContext) filterItemIndex(attributeIndex int) int {
	n := 0
	for i, item := range fc.Filters {
		if item.AttributeFilter == nil {
			continue
		}
		if n == attributeIndex {
			return i
		}
		n++
	}
	return len(fc.Filters)
}

// wouldCycle reports whether making parents the parents of child introduces a cycle.
func (fc FilterContext) wouldCycle(child string, parents []ParentFilter) bool {
	edges := parentEdges(fc)
	next := make([]string, 0, len(parents))
	for _, p := range parents {
		next = append(next, p.FilterLocalIdentifier)
	}
	edges[child] = next
	return hasCycleFrom(child, edges, map[string]int{})
}

func parentEdges(fc FilterContext) map[string][]string {
	edges := map[string][]string{}
	for _, f := range fc.AttributeFilters() {
		for _, p := range f.FilterElementsBy {
			edges[f.LocalIdentifier] = append(edges[f.LocalIdentifier], p.FilterLocalIdentifier)
		}
	}
	return edges
}

const (
	visiting = 1
	visited  = 2
)

func hasCycleFrom(node string, edges map[string][]string, marks map[string]int) bool {
	switch marks[node] {
	case visiting:
		return true
	case visited:
		return false
	}
	marks[node] = visiting
	for _, next := range edges[node] {
		if hasCycleFrom(next, edges, marks) {
			return true
		}
	}
	marks[node] = visited
	return false
}

// FilterFix records a correction applied while sanitizing a filter context.
type FilterFix struct {
	FilterLocalIdentifier string `json:"filterLocalIdentifier"`
	Parent                string `json:"parent"`
	Reason                string `json:"reason"`
}

// SanitizeFilterContext drops parent references to unknown filters or to the
// filter itself, then removes back edges until the parent graph is acyclic.
func SanitizeFilterContext(fc FilterContext) (FilterContext, []FilterFix) {
	out := fc.Clone()
	known := map[string]bool{}
	for _, f := range out.AttributeFilters() {
		known[f.LocalIdentifier] = true
	}
	var fixes []FilterFix
	for i := range out.Filters {
		af := out.Filters[i].AttributeFilter
		if af == nil || len(af.FilterElementsBy) == 0 {
			continue
		}
		kept := af.FilterElementsBy[:0]
		for _, p := range af.FilterElementsBy {
			switch {
			case p.FilterLocalIdentifier == af.LocalIdentifier:
				fixes = append(fixes, FilterFix{af.LocalIdentifier, p.FilterLocalIdentifier, "self reference"})
			case !known[p.FilterLocalIdentifier]:
				fixes = append(fixes, FilterFix{af.LocalIdentifier, p.FilterLocalIdentifier, "unknown parent"})
			default:
				kept = append(kept, p)
			}
		}
		af.FilterElementsBy = kept
	}

	marks := map[string]int{}
	var visit func(id string)
	visit = func(id string) {
		marks[id] = visiting
		af := out.attributeFilterPtr(id)
		if af != nil {
			kept := af.FilterElementsBy[:0]
			for _, p := range af.FilterElementsBy {
				if marks[p.FilterLocalIdentifier] == visiting {
					fixes = append(fixes, FilterFix{id, p.FilterLocalIdentifier, "cycle"})
					continue
				}
				if marks[p.FilterLocalIdentifier] == 0 {
					visit(p.FilterLocalIdentifier)
				}
				kept = append(kept, p)
			}
			af.FilterElementsBy = kept
		}
		marks[id] = visited
	}
	for _, f := range out.AttributeFilters() {
		if marks[f.LocalIdentifier] == 0 {
			visit(f.LocalIdentifier)
		}
	}
	return out, fixes
}
