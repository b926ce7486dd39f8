package dashboard

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is an outcome emitted by the processor. Every event carries the
// correlation id of the command or query that produced it.
type Event interface {
	EventType() string
	Meta() EventMeta
	stamp(correlationID string, at time.Time)
}

// EventMeta is embedded by every event.
type EventMeta struct {
	CorrelationID string    `json:"-"`
	Timestamp     time.Time `json:"-"`
}

// Meta returns the correlation metadata.
func (m EventMeta) Meta() EventMeta { return m }

func (m *EventMeta) stamp(correlationID string, at time.Time) {
	m.CorrelationID = correlationID
	m.Timestamp = at
}

// Event type names.
const (
	EventDashboardLoaded                    = "dashboard.loaded"
	EventDashboardRenamed                   = "dashboard.renamed"
	EventDashboardSaved                     = "dashboard.saved"
	EventLayoutSectionAdded                 = "dashboard.layout.section.added"
	EventLayoutSectionRemoved               = "dashboard.layout.section.removed"
	EventLayoutSectionHeaderChanged         = "dashboard.layout.section.header.changed"
	EventLayoutSectionMoved                 = "dashboard.layout.section.moved"
	EventLayoutSectionItemsAdded            = "dashboard.layout.items.added"
	EventLayoutSectionItemReplaced          = "dashboard.layout.item.replaced"
	EventLayoutSectionItemMoved             = "dashboard.layout.item.moved"
	EventLayoutSectionItemMovedToNewSection = "dashboard.layout.item.moved_to_new_section"
	EventLayoutSectionItemRemoved           = "dashboard.layout.item.removed"
	EventLayoutSectionItemsHeightResized    = "dashboard.layout.items.height_resized"
	EventLayoutSectionItemWidthResized      = "dashboard.layout.item.width_resized"
	EventLayoutChanged                      = "dashboard.layout.changed"
	EventAttributeFilterAdded               = "dashboard.filter.attribute.added"
	EventAttributeFilterRemoved             = "dashboard.filter.attribute.removed"
	EventAttributeFilterMoved               = "dashboard.filter.attribute.moved"
	EventAttributeFilterSelectionChanged    = "dashboard.filter.attribute.selection_changed"
	EventAttributeFilterParentChanged       = "dashboard.filter.attribute.parent_changed"
	EventDateFilterSelectionChanged         = "dashboard.filter.date.selection_changed"
	EventFilterContextChanged               = "dashboard.filter_context.changed"
	EventDrillRequested                     = "dashboard.drill.requested"
	EventDrillToInsightResolved             = "dashboard.drill.to_insight.resolved"
	EventDrillToDashboardResolved           = "dashboard.drill.to_dashboard.resolved"
	EventDrillToCustomURLResolved           = "dashboard.drill.to_custom_url.resolved"
	EventDrillToAttributeURLResolved        = "dashboard.drill.to_attribute_url.resolved"
	EventDrillToLegacyDashboardResolved     = "dashboard.drill.to_legacy_dashboard.resolved"
	EventDrillDownResolved                  = "dashboard.drill.down.resolved"
	EventExportToPDFRequested               = "dashboard.export.pdf.requested"
	EventExportToPDFResolved                = "dashboard.export.pdf.resolved"
	EventScheduledEmailCreated              = "dashboard.schedule_email.created"
	EventCommandStarted                     = "dashboard.command.started"
	EventCommandFailed                      = "dashboard.command.failed"
	EventCommandRejected                    = "dashboard.command.rejected"
	EventQueryStarted                       = "dashboard.query.started"
	EventQueryCompleted                     = "dashboard.query.completed"
	EventQueryFailed                        = "dashboard.query.failed"
)

// DashboardLoaded is emitted once a dashboard document replaced the state.
type DashboardLoaded struct {
	EventMeta
	Dashboard     ObjRef        `json:"dashboard"`
	Title         string        `json:"title"`
	Layout        Layout        `json:"layout"`
	FilterContext FilterContext `json:"filterContext"`
	Fixes         []FilterFix   `json:"fixes,omitempty"`
}

func (*DashboardLoaded) EventType() string { return EventDashboardLoaded }

type DashboardRenamed struct {
	EventMeta
	Title         string `json:"title"`
	PreviousTitle string `json:"previousTitle"`
}

func (*DashboardRenamed) EventType() string { return EventDashboardRenamed }

type DashboardSaved struct {
	EventMeta
	Dashboard DashboardDocument `json:"dashboard"`
}

func (*DashboardSaved) EventType() string { return EventDashboardSaved }

type LayoutSectionAdded struct {
	EventMeta
	Section     Section  `json:"section"`
	Index       int      `json:"index"`
	StashesUsed []string `json:"stashesUsed,omitempty"`
}

func (*LayoutSectionAdded) EventType() string { return EventLayoutSectionAdded }

type LayoutSectionRemoved struct {
	EventMeta
	Section         Section `json:"section"`
	Index           int     `json:"index"`
	StashIdentifier string  `json:"stashIdentifier,omitempty"`
}

func (*LayoutSectionRemoved) EventType() string { return EventLayoutSectionRemoved }

type LayoutSectionHeaderChanged struct {
	EventMeta
	Header SectionHeader `json:"header"`
	Index  int           `json:"index"`
}

func (*LayoutSectionHeaderChanged) EventType() string { return EventLayoutSectionHeaderChanged }

type LayoutSectionMoved struct {
	EventMeta
	Section   Section `json:"section"`
	FromIndex int     `json:"fromIndex"`
	ToIndex   int     `json:"toIndex"`
}

func (*LayoutSectionMoved) EventType() string { return EventLayoutSectionMoved }

type LayoutSectionItemsAdded struct {
	EventMeta
	SectionIndex int      `json:"sectionIndex"`
	StartIndex   int      `json:"startIndex"`
	Items        []Item   `json:"items"`
	StashesUsed  []string `json:"stashesUsed,omitempty"`
}

func (*LayoutSectionItemsAdded) EventType() string { return EventLayoutSectionItemsAdded }

type LayoutSectionItemReplaced struct {
	EventMeta
	SectionIndex    int      `json:"sectionIndex"`
	ItemIndex       int      `json:"itemIndex"`
	Items           []Item   `json:"items"`
	Previous        Item     `json:"previous"`
	StashIdentifier string   `json:"stashIdentifier,omitempty"`
	StashesUsed     []string `json:"stashesUsed,omitempty"`
}

func (*LayoutSectionItemReplaced) EventType() string { return EventLayoutSectionItemReplaced }

type LayoutSectionItemMoved struct {
	EventMeta
	Item             Item `json:"item"`
	FromSectionIndex int  `json:"fromSectionIndex"`
	ToSectionIndex   int  `json:"toSectionIndex"`
	FromIndex        int  `json:"fromIndex"`
	ToIndex          int  `json:"toIndex"`
}

func (*LayoutSectionItemMoved) EventType() string { return EventLayoutSectionItemMoved }

type LayoutSectionItemMovedToNewSection struct {
	EventMeta
	Item                 Item `json:"item"`
	FromSectionIndex     int  `json:"fromSectionIndex"`
	ToSectionIndex       int  `json:"toSectionIndex"`
	FromIndex            int  `json:"fromIndex"`
	SourceSectionRemoved bool `json:"sourceSectionRemoved"`
}

func (*LayoutSectionItemMovedToNewSection) EventType() string {
	return EventLayoutSectionItemMovedToNewSection
}

type LayoutSectionItemRemoved struct {
	EventMeta
	Item            Item   `json:"item"`
	SectionIndex    int    `json:"sectionIndex"`
	ItemIndex       int    `json:"itemIndex"`
	SectionRemoved  bool   `json:"sectionRemoved"`
	StashIdentifier string `json:"stashIdentifier,omitempty"`
}

func (*LayoutSectionItemRemoved) EventType() string { return EventLayoutSectionItemRemoved }

type LayoutSectionItemsHeightResized struct {
	EventMeta
	SectionIndex int   `json:"sectionIndex"`
	ItemIndexes  []int `json:"itemIndexes"`
	Height       int   `json:"height"`
}

func (*LayoutSectionItemsHeightResized) EventType() string {
	return EventLayoutSectionItemsHeightResized
}

type LayoutSectionItemWidthResized struct {
	EventMeta
	SectionIndex int `json:"sectionIndex"`
	ItemIndex    int `json:"itemIndex"`
	Width        int `json:"width"`
}

func (*LayoutSectionItemWidthResized) EventType() string { return EventLayoutSectionItemWidthResized }

// LayoutChanged follows every layout mutation, including undo.
type LayoutChanged struct {
	EventMeta
	Layout Layout `json:"layout"`
	Undone int    `json:"undone,omitempty"`
}

func (*LayoutChanged) EventType() string { return EventLayoutChanged }

type AttributeFilterAdded struct {
	EventMeta
	Filter AttributeFilter `json:"filter"`
	Index  int             `json:"index"`
}

func (*AttributeFilterAdded) EventType() string { return EventAttributeFilterAdded }

type AttributeFilterRemoved struct {
	EventMeta
	Filter   AttributeFilter `json:"filter"`
	Children []string        `json:"children,omitempty"`
}

func (*AttributeFilterRemoved) EventType() string { return EventAttributeFilterRemoved }

type AttributeFilterMoved struct {
	EventMeta
	Filter    AttributeFilter `json:"filter"`
	FromIndex int             `json:"fromIndex"`
	ToIndex   int             `json:"toIndex"`
}

func (*AttributeFilterMoved) EventType() string { return EventAttributeFilterMoved }

type AttributeFilterSelectionChanged struct {
	EventMeta
	Filter AttributeFilter `json:"filter"`
}

func (*AttributeFilterSelectionChanged) EventType() string {
	return EventAttributeFilterSelectionChanged
}

type AttributeFilterParentChanged struct {
	EventMeta
	Filter AttributeFilter `json:"filter"`
}

func (*AttributeFilterParentChanged) EventType() string { return EventAttributeFilterParentChanged }

type DateFilterSelectionChanged struct {
	EventMeta
	Filter DateFilter `json:"filter"`
}

func (*DateFilterSelectionChanged) EventType() string { return EventDateFilterSelectionChanged }

// FilterContextChanged closes every filter mutation.
type FilterContextChanged struct {
	EventMeta
	FilterContext FilterContext `json:"filterContext"`
}

func (*FilterContextChanged) EventType() string { return EventFilterContextChanged }

// DrillRequested is the umbrella event of a drill. The embedding application
// follows up with one of the specific drill commands.
type DrillRequested struct {
	EventMeta
	Widget ObjRef            `json:"widget"`
	Event  DrillEvent        `json:"drillEvent"`
	Drills []DrillDefinition `json:"drillDefinitions"`
}

func (*DrillRequested) EventType() string { return EventDrillRequested }

type DrillToInsightResolved struct {
	EventMeta
	Widget     ObjRef            `json:"widget"`
	Drill      DrillDefinition   `json:"drillDefinition"`
	Insight    ObjRef            `json:"insight"`
	Filters    []AttributeFilter `json:"filters"`
	DateFilter *DateFilter       `json:"dateFilter,omitempty"`
}

func (*DrillToInsightResolved) EventType() string { return EventDrillToInsightResolved }

type DrillToDashboardResolved struct {
	EventMeta
	Widget     ObjRef            `json:"widget"`
	Drill      DrillDefinition   `json:"drillDefinition"`
	Dashboard  ObjRef            `json:"dashboard"`
	TabID      string            `json:"tab,omitempty"`
	Filters    []AttributeFilter `json:"filters"`
	DateFilter *DateFilter       `json:"dateFilter,omitempty"`
}

func (*DrillToDashboardResolved) EventType() string { return EventDrillToDashboardResolved }

type DrillToCustomURLResolved struct {
	EventMeta
	Widget ObjRef          `json:"widget"`
	Drill  DrillDefinition `json:"drillDefinition"`
	URL    string          `json:"url"`
}

func (*DrillToCustomURLResolved) EventType() string { return EventDrillToCustomURLResolved }

type DrillToAttributeURLResolved struct {
	EventMeta
	Widget ObjRef          `json:"widget"`
	Drill  DrillDefinition `json:"drillDefinition"`
	URL    string          `json:"url"`
}

func (*DrillToAttributeURLResolved) EventType() string { return EventDrillToAttributeURLResolved }

type DrillToLegacyDashboardResolved struct {
	EventMeta
	Widget    ObjRef          `json:"widget"`
	Drill     DrillDefinition `json:"drillDefinition"`
	Dashboard ObjRef          `json:"dashboard"`
	TabID     string          `json:"tab,omitempty"`
}

func (*DrillToLegacyDashboardResolved) EventType() string {
	return EventDrillToLegacyDashboardResolved
}

type DrillDownResolved struct {
	EventMeta
	Widget          ObjRef            `json:"widget"`
	Drill           DrillDefinition   `json:"drillDefinition"`
	Insight         ObjRef            `json:"insight"`
	TargetAttribute ObjRef            `json:"targetAttribute"`
	Filters         []AttributeFilter `json:"filters"`
}

func (*DrillDownResolved) EventType() string { return EventDrillDownResolved }

type ExportToPDFRequested struct {
	EventMeta
	Dashboard ObjRef `json:"dashboard"`
}

func (*ExportToPDFRequested) EventType() string { return EventExportToPDFRequested }

type ExportToPDFResolved struct {
	EventMeta
	Result ExportResult `json:"result"`
}

func (*ExportToPDFResolved) EventType() string { return EventExportToPDFResolved }

type ScheduledEmailCreated struct {
	EventMeta
	Schedule ScheduledMail `json:"schedule"`
}

func (*ScheduledEmailCreated) EventType() string { return EventScheduledEmailCreated }

type CommandStarted struct {
	EventMeta
	Command string `json:"command"`
}

func (*CommandStarted) EventType() string { return EventCommandStarted }

// CommandFailed reports a handler failure. The state is left as the
// handler's applied mutations left it.
type CommandFailed struct {
	EventMeta
	Command string        `json:"command"`
	Error   *CommandError `json:"error"`
}

func (*CommandFailed) EventType() string { return EventCommandFailed }

// CommandRejected is emitted for commands no handler is registered for.
type CommandRejected struct {
	EventMeta
	Command string `json:"command"`
	Reason  string `json:"reason"`
}

func (*CommandRejected) EventType() string { return EventCommandRejected }

type QueryStarted struct {
	EventMeta
	Query string `json:"query"`
}

func (*QueryStarted) EventType() string { return EventQueryStarted }

type QueryCompleted struct {
	EventMeta
	Query  string `json:"query"`
	Cached bool   `json:"cached"`
	Result any    `json:"result,omitempty"`
}

func (*QueryCompleted) EventType() string { return EventQueryCompleted }

type QueryFailed struct {
	EventMeta
	Query string        `json:"query"`
	Error *CommandError `json:"error"`
}

func (*QueryFailed) EventType() string { return EventQueryFailed }

// EventEnvelope is the transport shape of an event.
type EventEnvelope struct {
	Type          string          `json:"type"`
	CorrelationID string          `json:"correlationId"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

// EnvelopeEvent wraps an event for transport.
func EnvelopeEvent(event Event) (EventEnvelope, error) {
	if event == nil {
		return EventEnvelope{}, fmt.Errorf("dashboard: event is nil")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("dashboard: marshal %s: %w", event.EventType(), err)
	}
	meta := event.Meta()
	return EventEnvelope{
		Type:          event.EventType(),
		CorrelationID: meta.CorrelationID,
		Timestamp:     meta.Timestamp,
		Payload:       payload,
	}, nil
}

// MarshalEvent encodes an event as {type, correlationId, timestamp, payload}.
func MarshalEvent(event Event) ([]byte, error) {
	envelope, err := EnvelopeEvent(event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope)
}

// EnvelopeEvents wraps a batch of events, stopping at the first failure.
func EnvelopeEvents(events []Event) ([]EventEnvelope, error) {
	out := make([]EventEnvelope, 0, len(events))
	for _, event := range events {
		envelope, err := EnvelopeEvent(event)
		if err != nil {
			return nil, err
		}
		out = append(out, envelope)
	}
	return out, nil
}
