package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Command is an intent routed through the processor. Commands are plain
// values; construct them with the New* helpers or decode them with
// DecodeCommand.
type Command interface {
	CommandType() string
	Correlation() string
}

// CommandMeta is embedded by every command.
type CommandMeta struct {
	CorrelationID string `json:"correlationId,omitempty" yaml:"correlationId,omitempty"`
}

// Correlation returns the caller supplied correlation id.
func (m CommandMeta) Correlation() string { return m.CorrelationID }

// Command type names.
const (
	CmdLoadDashboard                  = "dashboard.load"
	CmdRenameDashboard                = "dashboard.rename"
	CmdSaveDashboard                  = "dashboard.save"
	CmdAddLayoutSection               = "dashboard.layout.section.add"
	CmdRemoveLayoutSection            = "dashboard.layout.section.remove"
	CmdChangeLayoutSectionHeader      = "dashboard.layout.section.header.change"
	CmdMoveLayoutSection              = "dashboard.layout.section.move"
	CmdAddSectionItems                = "dashboard.layout.items.add"
	CmdReplaceSectionItem             = "dashboard.layout.item.replace"
	CmdMoveSectionItem                = "dashboard.layout.item.move"
	CmdMoveSectionItemToNewSection    = "dashboard.layout.item.move_to_new_section"
	CmdRemoveSectionItem              = "dashboard.layout.item.remove"
	CmdResizeSectionItemHeight        = "dashboard.layout.items.resize_height"
	CmdResizeSectionItemWidth         = "dashboard.layout.item.resize_width"
	CmdUndoLayoutChanges              = "dashboard.layout.undo"
	CmdAddAttributeFilter             = "dashboard.filter.attribute.add"
	CmdRemoveAttributeFilters         = "dashboard.filter.attribute.remove"
	CmdMoveAttributeFilter            = "dashboard.filter.attribute.move"
	CmdChangeAttributeFilterSelection = "dashboard.filter.attribute.selection.change"
	CmdSetAttributeFilterParents      = "dashboard.filter.attribute.parents.set"
	CmdChangeDateFilterSelection      = "dashboard.filter.date.change"
	CmdClearDateFilterSelection       = "dashboard.filter.date.clear"
	CmdDrill                          = "dashboard.drill"
	CmdDrillToInsight                 = "dashboard.drill.to_insight"
	CmdDrillToDashboard               = "dashboard.drill.to_dashboard"
	CmdDrillToCustomURL               = "dashboard.drill.to_custom_url"
	CmdDrillToAttributeURL            = "dashboard.drill.to_attribute_url"
	CmdDrillToLegacyDashboard         = "dashboard.drill.to_legacy_dashboard"
	CmdDrillDown                      = "dashboard.drill.down"
	CmdExportDashboardToPDF           = "dashboard.export.pdf"
	CmdCreateScheduledEmail           = "dashboard.schedule_email.create"
)

// ItemOrStash is either a concrete item or a reference to stashed items.
type ItemOrStash struct {
	Item  *Item  `json:"item,omitempty" yaml:"item,omitempty"`
	Stash string `json:"stash,omitempty" yaml:"stash,omitempty"`
}

// FromItem wraps a concrete item.
func FromItem(item Item) ItemOrStash { return ItemOrStash{Item: &item} }

// FromStash references the items stashed under id.
func FromStash(id string) ItemOrStash { return ItemOrStash{Stash: id} }

// WidgetLocator finds a widget by ref or local identifier.
type WidgetLocator struct {
	Ref             ObjRef `json:"ref,omitempty" yaml:"ref,omitempty"`
	LocalIdentifier string `json:"localIdentifier,omitempty" yaml:"localIdentifier,omitempty"`
}

// IsZero reports whether neither field is set.
func (l WidgetLocator) IsZero() bool {
	return l.Ref.IsZero() && l.LocalIdentifier == ""
}

func (l WidgetLocator) String() string {
	if !l.Ref.IsZero() {
		return l.Ref.String()
	}
	return l.LocalIdentifier
}

// Selection types for ChangeAttributeFilterSelection.
const (
	SelectionIn    = "IN"
	SelectionNotIn = "NOT_IN"
)

type LoadDashboard struct {
	CommandMeta
	Ref      ObjRef             `json:"ref" yaml:"ref"`
	Document *DashboardDocument `json:"document,omitempty" yaml:"document,omitempty"`
}

func (LoadDashboard) CommandType() string { return CmdLoadDashboard }

type RenameDashboard struct {
	CommandMeta
	Title string `json:"title" yaml:"title" validate:"required,max=255"`
}

func (RenameDashboard) CommandType() string { return CmdRenameDashboard }

type SaveDashboard struct {
	CommandMeta
}

func (SaveDashboard) CommandType() string { return CmdSaveDashboard }

type AddLayoutSection struct {
	CommandMeta
	Index  int           `json:"index" yaml:"index" validate:"gte=-1"`
	Header SectionHeader `json:"header,omitempty" yaml:"header,omitempty"`
	Items  []ItemOrStash `json:"items,omitempty" yaml:"items,omitempty"`
}

func (AddLayoutSection) CommandType() string { return CmdAddLayoutSection }

type RemoveLayoutSection struct {
	CommandMeta
	Index           int    `json:"index" yaml:"index" validate:"gte=-1"`
	StashIdentifier string `json:"stashIdentifier,omitempty" yaml:"stashIdentifier,omitempty"`
}

func (RemoveLayoutSection) CommandType() string { return CmdRemoveLayoutSection }

type ChangeLayoutSectionHeader struct {
	CommandMeta
	Index  int           `json:"index" yaml:"index" validate:"gte=0"`
	Header SectionHeader `json:"header" yaml:"header"`
	Merge  bool          `json:"merge,omitempty" yaml:"merge,omitempty"`
}

func (ChangeLayoutSectionHeader) CommandType() string { return CmdChangeLayoutSectionHeader }

type MoveLayoutSection struct {
	CommandMeta
	SectionIndex int `json:"sectionIndex" yaml:"sectionIndex" validate:"gte=0"`
	ToIndex      int `json:"toIndex" yaml:"toIndex" validate:"gte=-1"`
}

func (MoveLayoutSection) CommandType() string { return CmdMoveLayoutSection }

type AddSectionItems struct {
	CommandMeta
	SectionIndex int           `json:"sectionIndex" yaml:"sectionIndex" validate:"gte=0"`
	ItemIndex    int           `json:"itemIndex" yaml:"itemIndex" validate:"gte=-1"`
	Items        []ItemOrStash `json:"items" yaml:"items" validate:"min=1"`
}

func (AddSectionItems) CommandType() string { return CmdAddSectionItems }

type ReplaceSectionItem struct {
	CommandMeta
	SectionIndex    int         `json:"sectionIndex" yaml:"sectionIndex" validate:"gte=0"`
	ItemIndex       int         `json:"itemIndex" yaml:"itemIndex" validate:"gte=0"`
	Item            ItemOrStash `json:"item" yaml:"item"`
	StashIdentifier string      `json:"stashIdentifier,omitempty" yaml:"stashIdentifier,omitempty"`
}

func (ReplaceSectionItem) CommandType() string { return CmdReplaceSectionItem }

type MoveSectionItem struct {
	CommandMeta
	SectionIndex   int `json:"sectionIndex" yaml:"sectionIndex" validate:"gte=0"`
	ItemIndex      int `json:"itemIndex" yaml:"itemIndex" validate:"gte=0"`
	ToSectionIndex int `json:"toSectionIndex" yaml:"toSectionIndex" validate:"gte=-1"`
	ToItemIndex    int `json:"toItemIndex" yaml:"toItemIndex" validate:"gte=-1"`
}

func (MoveSectionItem) CommandType() string { return CmdMoveSectionItem }

type MoveSectionItemToNewSection struct {
	CommandMeta
	SectionIndex                 int  `json:"sectionIndex" yaml:"sectionIndex" validate:"gte=0"`
	ItemIndex                    int  `json:"itemIndex" yaml:"itemIndex" validate:"gte=0"`
	ToSectionIndex               int  `json:"toSectionIndex" yaml:"toSectionIndex" validate:"gte=-1"`
	RemoveOriginalSectionIfEmpty bool `json:"removeOriginalSectionIfEmpty,omitempty" yaml:"removeOriginalSectionIfEmpty,omitempty"`
}

func (MoveSectionItemToNewSection) CommandType() string { return CmdMoveSectionItemToNewSection }

type RemoveSectionItem struct {
	CommandMeta
	SectionIndex    int    `json:"sectionIndex" yaml:"sectionIndex" validate:"gte=0"`
	ItemIndex       int    `json:"itemIndex" yaml:"itemIndex" validate:"gte=-1"`
	StashIdentifier string `json:"stashIdentifier,omitempty" yaml:"stashIdentifier,omitempty"`
	Eager           bool   `json:"eager,omitempty" yaml:"eager,omitempty"`
}

func (RemoveSectionItem) CommandType() string { return CmdRemoveSectionItem }

type ResizeSectionItemHeight struct {
	CommandMeta
	SectionIndex int   `json:"sectionIndex" yaml:"sectionIndex" validate:"gte=0"`
	ItemIndexes  []int `json:"itemIndexes" yaml:"itemIndexes" validate:"min=1,dive,gte=0"`
	Height       int   `json:"height" yaml:"height" validate:"gte=1"`
}

func (ResizeSectionItemHeight) CommandType() string { return CmdResizeSectionItemHeight }

type ResizeSectionItemWidth struct {
	CommandMeta
	SectionIndex int `json:"sectionIndex" yaml:"sectionIndex" validate:"gte=0"`
	ItemIndex    int `json:"itemIndex" yaml:"itemIndex" validate:"gte=0"`
	Width        int `json:"width" yaml:"width" validate:"gte=1,lte=12"`
}

func (ResizeSectionItemWidth) CommandType() string { return CmdResizeSectionItemWidth }

// UndoLayoutChanges rolls the layout back. Selector receives the history
// newest first and returns the index of the entry to roll back to, or -1
// to undo nothing. Without a selector or correlation id the newest entry
// is undone.
type UndoLayoutChanges struct {
	CommandMeta
	Selector           func(history []UndoEntry) int `json:"-" yaml:"-"`
	UntilCorrelationID string                        `json:"untilCorrelationId,omitempty" yaml:"untilCorrelationId,omitempty"`
}

func (UndoLayoutChanges) CommandType() string { return CmdUndoLayoutChanges }

type AddAttributeFilter struct {
	CommandMeta
	DisplayForm      ObjRef             `json:"displayForm" yaml:"displayForm"`
	Index            int                `json:"index" yaml:"index" validate:"gte=-1"`
	ParentFilters    []ParentFilter     `json:"parentFilters,omitempty" yaml:"parentFilters,omitempty" validate:"dive"`
	InitialSelection *AttributeElements `json:"initialSelection,omitempty" yaml:"initialSelection,omitempty"`
	InitialNegative  bool               `json:"initialIsNegativeSelection,omitempty" yaml:"initialIsNegativeSelection,omitempty"`
	SelectionMode    SelectionMode      `json:"selectionMode,omitempty" yaml:"selectionMode,omitempty" validate:"omitempty,oneof=multi single"`
}

func (AddAttributeFilter) CommandType() string { return CmdAddAttributeFilter }

type RemoveAttributeFilters struct {
	CommandMeta
	FilterLocalIdentifiers []string `json:"filterLocalIdentifiers" yaml:"filterLocalIdentifiers" validate:"min=1,dive,required"`
}

func (RemoveAttributeFilters) CommandType() string { return CmdRemoveAttributeFilters }

type MoveAttributeFilter struct {
	CommandMeta
	FilterLocalIdentifier string `json:"filterLocalIdentifier" yaml:"filterLocalIdentifier" validate:"required"`
	Index                 int    `json:"index" yaml:"index" validate:"gte=-1"`
}

func (MoveAttributeFilter) CommandType() string { return CmdMoveAttributeFilter }

type ChangeAttributeFilterSelection struct {
	CommandMeta
	FilterLocalIdentifier string            `json:"filterLocalIdentifier" yaml:"filterLocalIdentifier" validate:"required"`
	Elements              AttributeElements `json:"elements" yaml:"elements"`
	SelectionType         string            `json:"selectionType" yaml:"selectionType" validate:"required,oneof=IN NOT_IN"`
}

func (ChangeAttributeFilterSelection) CommandType() string { return CmdChangeAttributeFilterSelection }

type SetAttributeFilterParents struct {
	CommandMeta
	FilterLocalIdentifier string         `json:"filterLocalIdentifier" yaml:"filterLocalIdentifier" validate:"required"`
	ParentFilters         []ParentFilter `json:"parentFilters" yaml:"parentFilters" validate:"dive"`
}

func (SetAttributeFilterParents) CommandType() string { return CmdSetAttributeFilterParents }

type ChangeDateFilterSelection struct {
	CommandMeta
	Type        DateFilterType `json:"type" yaml:"type" validate:"required,oneof=relative absolute"`
	Granularity string         `json:"granularity,omitempty" yaml:"granularity,omitempty"`
	From        string         `json:"from,omitempty" yaml:"from,omitempty"`
	To          string         `json:"to,omitempty" yaml:"to,omitempty"`
	DataSet     *ObjRef        `json:"dataSet,omitempty" yaml:"dataSet,omitempty"`
}

func (ChangeDateFilterSelection) CommandType() string { return CmdChangeDateFilterSelection }

type ClearDateFilterSelection struct {
	CommandMeta
}

func (ClearDateFilterSelection) CommandType() string { return CmdClearDateFilterSelection }

type Drill struct {
	CommandMeta
	Widget WidgetLocator `json:"widget" yaml:"widget"`
	Event  DrillEvent    `json:"drillEvent" yaml:"drillEvent"`
}

func (Drill) CommandType() string { return CmdDrill }

// DrillCommand carries the fields shared by the specific drill commands.
type DrillCommand struct {
	CommandMeta
	Widget WidgetLocator   `json:"widget" yaml:"widget"`
	Drill  DrillDefinition `json:"drillDefinition" yaml:"drillDefinition"`
	Event  DrillEvent      `json:"drillEvent" yaml:"drillEvent"`
}

type DrillToInsight struct{ DrillCommand }

func (DrillToInsight) CommandType() string { return CmdDrillToInsight }

type DrillToDashboard struct{ DrillCommand }

func (DrillToDashboard) CommandType() string { return CmdDrillToDashboard }

type DrillToCustomURL struct{ DrillCommand }

func (DrillToCustomURL) CommandType() string { return CmdDrillToCustomURL }

type DrillToAttributeURL struct{ DrillCommand }

func (DrillToAttributeURL) CommandType() string { return CmdDrillToAttributeURL }

type DrillToLegacyDashboard struct{ DrillCommand }

func (DrillToLegacyDashboard) CommandType() string { return CmdDrillToLegacyDashboard }

type DrillDown struct{ DrillCommand }

func (DrillDown) CommandType() string { return CmdDrillDown }

type ExportDashboardToPDF struct {
	CommandMeta
}

func (ExportDashboardToPDF) CommandType() string { return CmdExportDashboardToPDF }

type CreateScheduledEmail struct {
	CommandMeta
	Schedule ScheduledMail `json:"schedule" yaml:"schedule"`
}

func (CreateScheduledEmail) CommandType() string { return CmdCreateScheduledEmail }

// Constructors.

func NewLoadDashboard(ref ObjRef) LoadDashboard { return LoadDashboard{Ref: ref} }

func NewLoadDashboardDocument(doc DashboardDocument) LoadDashboard {
	return LoadDashboard{Ref: doc.Ref, Document: &doc}
}

func NewRenameDashboard(title string) RenameDashboard { return RenameDashboard{Title: title} }

func NewSaveDashboard() SaveDashboard { return SaveDashboard{} }

func NewAddLayoutSection(index int, header SectionHeader, items ...ItemOrStash) AddLayoutSection {
	return AddLayoutSection{Index: index, Header: header, Items: items}
}

func NewRemoveLayoutSection(index int, stashIdentifier string) RemoveLayoutSection {
	return RemoveLayoutSection{Index: index, StashIdentifier: stashIdentifier}
}

func NewChangeLayoutSectionHeader(index int, header SectionHeader, merge bool) ChangeLayoutSectionHeader {
	return ChangeLayoutSectionHeader{Index: index, Header: header, Merge: merge}
}

func NewMoveLayoutSection(sectionIndex, toIndex int) MoveLayoutSection {
	return MoveLayoutSection{SectionIndex: sectionIndex, ToIndex: toIndex}
}

func NewAddSectionItems(sectionIndex, itemIndex int, items ...ItemOrStash) AddSectionItems {
	return AddSectionItems{SectionIndex: sectionIndex, ItemIndex: itemIndex, Items: items}
}

func NewReplaceSectionItem(sectionIndex, itemIndex int, item ItemOrStash, stashIdentifier string) ReplaceSectionItem {
	return ReplaceSectionItem{SectionIndex: sectionIndex, ItemIndex: itemIndex, Item: item, StashIdentifier: stashIdentifier}
}

func NewMoveSectionItem(sectionIndex, itemIndex, toSectionIndex, toItemIndex int) MoveSectionItem {
	return MoveSectionItem{SectionIndex: sectionIndex, ItemIndex: itemIndex, ToSectionIndex: toSectionIndex, ToItemIndex: toItemIndex}
}

func NewMoveSectionItemToNewSection(sectionIndex, itemIndex, toSectionIndex int) MoveSectionItemToNewSection {
	return MoveSectionItemToNewSection{SectionIndex: sectionIndex, ItemIndex: itemIndex, ToSectionIndex: toSectionIndex}
}

func NewRemoveSectionItem(sectionIndex, itemIndex int, stashIdentifier string) RemoveSectionItem {
	return RemoveSectionItem{SectionIndex: sectionIndex, ItemIndex: itemIndex, StashIdentifier: stashIdentifier}
}

func NewResizeSectionItemHeight(sectionIndex int, itemIndexes []int, height int) ResizeSectionItemHeight {
	return ResizeSectionItemHeight{SectionIndex: sectionIndex, ItemIndexes: itemIndexes, Height: height}
}

func NewResizeSectionItemWidth(sectionIndex, itemIndex, width int) ResizeSectionItemWidth {
	return ResizeSectionItemWidth{SectionIndex: sectionIndex, ItemIndex: itemIndex, Width: width}
}

func NewUndoLayoutChanges() UndoLayoutChanges { return UndoLayoutChanges{} }

func NewAddAttributeFilter(displayForm ObjRef, index int, parents ...ParentFilter) AddAttributeFilter {
	return AddAttributeFilter{DisplayForm: displayForm, Index: index, ParentFilters: parents}
}

func NewRemoveAttributeFilters(localIDs ...string) RemoveAttributeFilters {
	return RemoveAttributeFilters{FilterLocalIdentifiers: localIDs}
}

func NewMoveAttributeFilter(localID string, index int) MoveAttributeFilter {
	return MoveAttributeFilter{FilterLocalIdentifier: localID, Index: index}
}

func NewChangeAttributeFilterSelection(localID string, elements AttributeElements, selectionType string) ChangeAttributeFilterSelection {
	return ChangeAttributeFilterSelection{FilterLocalIdentifier: localID, Elements: elements, SelectionType: selectionType}
}

func NewSetAttributeFilterParents(localID string, parents ...ParentFilter) SetAttributeFilterParents {
	return SetAttributeFilterParents{FilterLocalIdentifier: localID, ParentFilters: parents}
}

func NewChangeDateFilterSelection(filterType DateFilterType, granularity, from, to string) ChangeDateFilterSelection {
	return ChangeDateFilterSelection{Type: filterType, Granularity: granularity, From: from, To: to}
}

func NewClearDateFilterSelection() ClearDateFilterSelection { return ClearDateFilterSelection{} }

func NewDrill(widget WidgetLocator, event DrillEvent) Drill {
	return Drill{Widget: widget, Event: event}
}

func newDrillCommand(widget WidgetLocator, drill DrillDefinition, event DrillEvent) DrillCommand {
	return DrillCommand{Widget: widget, Drill: drill, Event: event}
}

func NewDrillToInsight(widget WidgetLocator, drill DrillDefinition, event DrillEvent) DrillToInsight {
	return DrillToInsight{newDrillCommand(widget, drill, event)}
}

func NewDrillToDashboard(widget WidgetLocator, drill DrillDefinition, event DrillEvent) DrillToDashboard {
	return DrillToDashboard{newDrillCommand(widget, drill, event)}
}

func NewDrillToCustomURL(widget WidgetLocator, drill DrillDefinition, event DrillEvent) DrillToCustomURL {
	return DrillToCustomURL{newDrillCommand(widget, drill, event)}
}

func NewDrillToAttributeURL(widget WidgetLocator, drill DrillDefinition, event DrillEvent) DrillToAttributeURL {
	return DrillToAttributeURL{newDrillCommand(widget, drill, event)}
}

func NewDrillToLegacyDashboard(widget WidgetLocator, drill DrillDefinition, event DrillEvent) DrillToLegacyDashboard {
	return DrillToLegacyDashboard{newDrillCommand(widget, drill, event)}
}

func NewDrillDown(widget WidgetLocator, drill DrillDefinition, event DrillEvent) DrillDown {
	return DrillDown{newDrillCommand(widget, drill, event)}
}

func NewExportDashboardToPDF() ExportDashboardToPDF { return ExportDashboardToPDF{} }

func NewCreateScheduledEmail(schedule ScheduledMail) CreateScheduledEmail {
	return CreateScheduledEmail{Schedule: schedule}
}

// WithCorrelation returns a copy of cmd carrying the correlation id.
func WithCorrelation[C Command](cmd C, correlationID string) C {
	if setter, ok := any(&cmd).(interface{ setCorrelation(string) }); ok {
		setter.setCorrelation(correlationID)
	}
	return cmd
}

func (m *CommandMeta) setCorrelation(id string) { m.CorrelationID = id }

type commandDecoder func(data []byte) (Command, error)

var commandDecoders = map[string]commandDecoder{}

func registerDecoder[C Command](name string) {
	commandDecoders[name] = func(data []byte) (Command, error) {
		var cmd C
		if len(bytes.TrimSpace(data)) == 0 {
			return cmd, nil
		}
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cmd); err != nil {
			return nil, err
		}
		return cmd, nil
	}
}

func init() {
	registerDecoder[LoadDashboard](CmdLoadDashboard)
	registerDecoder[RenameDashboard](CmdRenameDashboard)
	registerDecoder[SaveDashboard](CmdSaveDashboard)
	registerDecoder[AddLayoutSection](CmdAddLayoutSection)
	registerDecoder[RemoveLayoutSection](CmdRemoveLayoutSection)
	registerDecoder[ChangeLayoutSectionHeader](CmdChangeLayoutSectionHeader)
	registerDecoder[MoveLayoutSection](CmdMoveLayoutSection)
	registerDecoder[AddSectionItems](CmdAddSectionItems)
	registerDecoder[ReplaceSectionItem](CmdReplaceSectionItem)
	registerDecoder[MoveSectionItem](CmdMoveSectionItem)
	registerDecoder[MoveSectionItemToNewSection](CmdMoveSectionItemToNewSection)
	registerDecoder[RemoveSectionItem](CmdRemoveSectionItem)
	registerDecoder[ResizeSectionItemHeight](CmdResizeSectionItemHeight)
	registerDecoder[ResizeSectionItemWidth](CmdResizeSectionItemWidth)
	registerDecoder[UndoLayoutChanges](CmdUndoLayoutChanges)
	registerDecoder[AddAttributeFilter](CmdAddAttributeFilter)
	registerDecoder[RemoveAttributeFilters](CmdRemoveAttributeFilters)
	registerDecoder[MoveAttributeFilter](CmdMoveAttributeFilter)
	registerDecoder[ChangeAttributeFilterSelection](CmdChangeAttributeFilterSelection)
	registerDecoder[SetAttributeFilterParents](CmdSetAttributeFilterParents)
	registerDecoder[ChangeDateFilterSelection](CmdChangeDateFilterSelection)
	registerDecoder[ClearDateFilterSelection](CmdClearDateFilterSelection)
	registerDecoder[Drill](CmdDrill)
	registerDecoder[DrillToInsight](CmdDrillToInsight)
	registerDecoder[DrillToDashboard](CmdDrillToDashboard)
	registerDecoder[DrillToCustomURL](CmdDrillToCustomURL)
	registerDecoder[DrillToAttributeURL](CmdDrillToAttributeURL)
	registerDecoder[DrillToLegacyDashboard](CmdDrillToLegacyDashboard)
	registerDecoder[DrillDown](CmdDrillDown)
	registerDecoder[ExportDashboardToPDF](CmdExportDashboardToPDF)
	registerDecoder[CreateScheduledEmail](CmdCreateScheduledEmail)
}

// DecodeCommand builds a command of the named type from its JSON payload.
// Unknown fields are rejected.
func DecodeCommand(commandType string, data []byte) (Command, error) {
	decode, ok := commandDecoders[commandType]
	if !ok {
		return nil, fmt.Errorf("dashboard: unknown command type %q", commandType)
	}
	cmd, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("dashboard: decode %s: %w", commandType, err)
	}
	return cmd, nil
}

// CommandTypes lists the decodable command types in lexical order.
func CommandTypes() []string {
	out := make([]string, 0, len(commandDecoders))
	for name := range commandDecoders {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
