package dashboard

// DrillType discriminates drill definitions.
type DrillType string

const (
	DrillTypeToInsight         DrillType = "drillToInsight"
	DrillTypeToDashboard       DrillType = "drillToDashboard"
	DrillTypeToCustomURL       DrillType = "drillToCustomUrl"
	DrillTypeToAttributeURL    DrillType = "drillToAttributeUrl"
	DrillTypeToLegacyDashboard DrillType = "drillToLegacyDashboard"
	DrillTypeDown              DrillType = "drillDown"
)

// DrillOriginType tells whether a drill starts from a measure or an attribute.
type DrillOriginType string

const (
	DrillFromMeasure   DrillOriginType = "drillFromMeasure"
	DrillFromAttribute DrillOriginType = "drillFromAttribute"
)

// DrillOrigin identifies the header a drill is attached to.
type DrillOrigin struct {
	Type            DrillOriginType `json:"type" yaml:"type"`
	LocalIdentifier string          `json:"localIdentifier,omitempty" yaml:"localIdentifier,omitempty"`
	Attribute       ObjRef          `json:"attribute,omitempty" yaml:"attribute,omitempty"`
}

// DrillDefinition is a configured drill on a widget. Target fields are read
// according to Type.
type DrillDefinition struct {
	Type                 DrillType   `json:"type" yaml:"type"`
	LocalIdentifier      string      `json:"localIdentifier,omitempty" yaml:"localIdentifier,omitempty"`
	Origin               DrillOrigin `json:"origin" yaml:"origin"`
	Target               ObjRef      `json:"target,omitempty" yaml:"target,omitempty"`
	URL                  string      `json:"url,omitempty" yaml:"url,omitempty"`
	DisplayForm          ObjRef      `json:"displayForm,omitempty" yaml:"displayForm,omitempty"`
	HyperlinkDisplayForm ObjRef      `json:"hyperlinkDisplayForm,omitempty" yaml:"hyperlinkDisplayForm,omitempty"`
	TabID                string      `json:"tab,omitempty" yaml:"tab,omitempty"`
	TargetAttribute      ObjRef      `json:"targetAttribute,omitempty" yaml:"targetAttribute,omitempty"`
}

// Clone copies the definition.
func (d DrillDefinition) Clone() DrillDefinition {
	return d
}

// DrillEvent is what a rendered visualization reports when a data point is clicked.
type DrillEvent struct {
	Widget       ObjRef                `json:"widget,omitempty"`
	Insight      ObjRef                `json:"insight,omitempty"`
	Intersection []IntersectionElement `json:"intersection"`
	Points       []map[string]any      `json:"points,omitempty"`
	Extra        map[string]string     `json:"extra,omitempty"`
}

// IntersectionElement is one header of the clicked data point.
type IntersectionElement struct {
	Header IntersectionHeader `json:"header"`
}

// IntersectionHeader carries either an attribute or a measure header.
type IntersectionHeader struct {
	Attribute     *AttributeHeader     `json:"attributeHeader,omitempty"`
	AttributeItem *AttributeHeaderItem `json:"attributeHeaderItem,omitempty"`
	Measure       *MeasureHeader       `json:"measureHeader,omitempty"`
}

// AttributeHeader describes the attribute label a drilled value belongs to.
// Granularity is set for date attributes.
type AttributeHeader struct {
	LocalIdentifier string `json:"localIdentifier"`
	Ref             ObjRef `json:"ref"`
	Identifier      string `json:"identifier,omitempty"`
	URI             string `json:"uri,omitempty"`
	Name            string `json:"name,omitempty"`
	FormOf          ObjRef `json:"formOf"`
	Granularity     string `json:"granularity,omitempty"`
}

// AttributeHeaderItem is the drilled attribute value.
type AttributeHeaderItem struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

// MeasureHeader describes the drilled measure.
type MeasureHeader struct {
	LocalIdentifier string `json:"localIdentifier"`
	Ref             ObjRef `json:"ref,omitempty"`
	Name            string `json:"name,omitempty"`
	Format          string `json:"format,omitempty"`
}

func (h IntersectionHeader) isAttribute() bool {
	return h.Attribute != nil && h.AttributeItem != nil
}

func (h IntersectionHeader) isDateAttribute() bool {
	return h.isAttribute() && h.Attribute.Granularity != ""
}

// ConvertIntersectionToAttributeFilters turns the attribute headers of a drill
// intersection into positive attribute filters keyed by element URI. Date
// attributes and measure headers are skipped.
func ConvertIntersectionToAttributeFilters(intersection []IntersectionElement) []AttributeFilter {
	var filters []AttributeFilter
	for _, element := range intersection {
		header := element.Header
		if !header.isAttribute() || header.isDateAttribute() {
			continue
		}
		filters = append(filters, AttributeFilter{
			DisplayForm: header.Attribute.Ref,
			Title:       header.Attribute.Name,
			Elements:    AttributeElements{URIs: []string{header.AttributeItem.URI}},
		})
	}
	return filters
}

// MergeDrillFilters lets drill filters replace ambient filters on the same
// display form. Unmatched ambient filters keep their order, the remaining
// drill filters are appended.
func MergeDrillFilters(ambient, drill []AttributeFilter) []AttributeFilter {
	used := make([]bool, len(drill))
	out := make([]AttributeFilter, 0, len(ambient)+len(drill))
	for _, filter := range ambient {
		replaced := false
		for i, candidate := range drill {
			if !used[i] && candidate.DisplayForm.Equal(filter.DisplayForm) {
				merged := candidate.Clone()
				merged.LocalIdentifier = filter.LocalIdentifier
				if merged.Title == "" {
					merged.Title = filter.Title
				}
				out = append(out, merged)
				used[i] = true
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, filter.Clone())
		}
	}
	for i, candidate := range drill {
		if !used[i] {
			out = append(out, candidate.Clone())
		}
	}
	return out
}

// MatchingDrills returns the widget drills whose origin appears in the intersection.
func MatchingDrills(widget Widget, intersection []IntersectionElement) []DrillDefinition {
	var out []DrillDefinition
	for _, drill := range widget.Drills {
		if drillMatches(drill, intersection) {
			out = append(out, drill.Clone())
		}
	}
	return out
}

func drillMatches(drill DrillDefinition, intersection []IntersectionElement) bool {
	for _, element := range intersection {
		header := element.Header
		switch drill.Origin.Type {
		case DrillFromMeasure:
			if header.Measure != nil && header.Measure.LocalIdentifier == drill.Origin.LocalIdentifier {
				return true
			}
		case DrillFromAttribute:
			if header.Attribute == nil {
				continue
			}
			if header.Attribute.LocalIdentifier == drill.Origin.LocalIdentifier && drill.Origin.LocalIdentifier != "" {
				return true
			}
			if drill.Origin.Attribute.Equal(header.Attribute.FormOf) || drill.Origin.Attribute.Equal(header.Attribute.Ref) {
				return true
			}
		}
	}
	return false
}

// intersectionValueFor returns the value drilled on for the given attribute
// or display form, if any.
func intersectionValueFor(intersection []IntersectionElement, ref ObjRef) (AttributeHeader, AttributeHeaderItem, bool) {
	for _, element := range intersection {
		header := element.Header
		if !header.isAttribute() {
			continue
		}
		if header.Attribute.Ref.Equal(ref) || header.Attribute.FormOf.Equal(ref) {
			return *header.Attribute, *header.AttributeItem, true
		}
	}
	return AttributeHeader{}, AttributeHeaderItem{}, false
}

// widgetAmbientFilters returns the dashboard filters a widget honours.
func widgetAmbientFilters(fc FilterContext, widget Widget) ([]AttributeFilter, *DateFilter) {
	var attrs []AttributeFilter
	for _, f := range fc.AttributeFilters() {
		if containsRef(widget.IgnoreDashboardFilters, f.DisplayForm) {
			continue
		}
		// negative selection of nothing means "all"
		if f.Negative && f.Elements.IsEmpty() {
			continue
		}
		attrs = append(attrs, f.Clone())
	}
	var date *DateFilter
	if df, ok := fc.DateFilter(); ok && widget.DateDataSet != nil && !df.IsAllTime() {
		clone := df.Clone()
		clone.DataSet = cloneRefPtr(widget.DateDataSet)
		date = &clone
	}
	return attrs, date
}
