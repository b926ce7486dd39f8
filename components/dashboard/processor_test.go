package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessorLoadDashboardFromBackend(t *testing.T) {
	backend := newStubBackend()
	doc := testDocument()
	backend.dashboards["sales"] = doc
	p := newTestProcessor(t, backend)

	result := mustExecute(t, p, NewLoadDashboard(doc.Ref))

	loaded, ok := FirstEvent[*DashboardLoaded](result)
	require.True(t, ok)
	assert.Equal(t, "Sales", loaded.Title)
	snapshot := p.Snapshot()
	assert.True(t, snapshot.Loaded)
	assert.Equal(t, []string{"A", "B", "C"}, sectionTitles(snapshot))
	assert.Empty(t, snapshot.History)
	assert.Empty(t, snapshot.Stash)

	cmdErr := executeErr(t, p, NewLoadDashboard(IdentifierRef("missing", "analyticalDashboard")))
	assert.Equal(t, UserError, cmdErr.Kind)
	assert.Equal(t, "no-data", cmdErr.Details["backendErrorKind"])
}

func TestProcessorLoadSanitizesFilterContext(t *testing.T) {
	p := newTestProcessor(t, newStubBackend())
	doc := testDocument()
	doc.FilterContext.Filters = append(doc.FilterContext.Filters,
		attributeFilterItem("product", "label.product", "product", "ghost"),
	)

	result := mustExecute(t, p, NewLoadDashboardDocument(doc))

	loaded, ok := FirstEvent[*DashboardLoaded](result)
	require.True(t, ok)
	require.Len(t, loaded.Fixes, 2)
	assert.Equal(t, "self reference", loaded.Fixes[0].Reason)
	assert.Equal(t, "unknown parent", loaded.Fixes[1].Reason)
	product, _, ok := p.Snapshot().FilterContext.AttributeFilter("product")
	require.True(t, ok)
	assert.Empty(t, product.FilterElementsBy)
}

func TestProcessorAddSectionItemsAppendsWithMinusOne(t *testing.T) {
	p := newTestProcessor(t, newStubBackend())
	loadTestDocument(t, p, testDocument())

	result := mustExecute(t, p, NewAddSectionItems(1, -1, FromItem(testItem("x", 4))))

	section := p.Snapshot().Layout.Sections[1]
	assert.Equal(t, []string{"y", "z", "x"}, itemIDs(section))
	added, ok := FirstEvent[*LayoutSectionItemsAdded](result)
	require.True(t, ok)
	assert.Equal(t, 2, added.StartIndex)
	_, ok = FirstEvent[*LayoutChanged](result)
	assert.True(t, ok)
}

func TestProcessorAddSectionItemsAtIndex(t *testing.T) {
	p := newTestProcessor(t, newStubBackend())
	loadTestDocument(t, p, testDocument())

	mustExecute(t, p, NewAddSectionItems(1, 0, FromItem(testItem("x1", 4)), FromItem(testItem("x2", 4))))

	section := p.Snapshot().Layout.Sections[1]
	assert.Equal(t, []string{"x1", "x2", "y", "z"}, itemIDs(section))
}

func TestProcessorAddSectionItemsRejectsDuplicateWidget(t *testing.T) {
	p := newTestProcessor(t, newStubBackend())
	loadTestDocument(t, p, testDocument())

	cmdErr := executeErr(t, p, NewAddSectionItems(0, -1, FromItem(testItem("z", 4))))
	assert.Equal(t, UserError, cmdErr.Kind)

	cmdErr = executeErr(t, p, NewAddSectionItems(0, 3, FromItem(testItem("x", 4))))
	assert.Equal(t, UserError, cmdErr.Kind)
	assert.Equal(t, []string{"a1", "a2"}, itemIDs(p.Snapshot().Layout.Sections[0]))
}

func TestProcessorMoveLayoutSection(t *testing.T) {
	cases := []struct {
		name     string
		from, to int
		want     []string
	}{
		{name: "first to last", from: 0, to: -1, want: []string{"B", "C", "A"}},
		{name: "second to first", from: 1, to: 0, want: []string{"B", "A", "C"}},
		{name: "first to middle", from: 0, to: 1, want: []string{"B", "A", "C"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestProcessor(t, newStubBackend())
			loadTestDocument(t, p, testDocument())

			result := mustExecute(t, p, NewMoveLayoutSection(tc.from, tc.to))

			assert.Equal(t, tc.want, sectionTitles(p.Snapshot()))
			moved, ok := FirstEvent[*LayoutSectionMoved](result)
			require.True(t, ok)
			assert.Equal(t, tc.from, moved.FromIndex)
		})
	}
}

func TestProcessorMoveLayoutSectionRejectsNoop(t *testing.T) {
	p := newTestProcessor(t, newStubBackend())
	loadTestDocument(t, p, testDocument())

	cmdErr := executeErr(t, p, NewMoveLayoutSection(2, -1))
	assert.Equal(t, UserError, cmdErr.Kind)
	cmdErr = executeErr(t, p, NewMoveLayoutSection(5, 0))
	assert.Equal(t, UserError, cmdErr.Kind)
	assert.Empty(t, p.Snapshot().History)
}

func TestProcessorMoveSectionItem(t *testing.T) {
	p := newTestProcessor(t, newStubBackend())
	loadTestDocument(t, p, testDocument())

	mustExecute(t, p, NewMoveSectionItem(0, 0, 1, -1))
	snapshot := p.Snapshot()
	assert.Equal(t, []string{"a2"}, itemIDs(snapshot.Layout.Sections[0]))
	assert.Equal(t, []string{"y", "z", "a1"}, itemIDs(snapshot.Layout.Sections[1]))

	mustExecute(t, p, NewMoveSectionItem(1, 0, 1, -1))
	assert.Equal(t, []string{"z", "a1", "y"}, itemIDs(p.Snapshot().Layout.Sections[1]))

	cmdErr := executeErr(t, p, NewMoveSectionItem(1, 2, 1, 2))
	assert.Equal(t, UserError, cmdErr.Kind)
}

func TestProcessorMoveSectionItemToNewSection(t *testing.T) {
	p := newTestProcessor(t, newStubBackend())
	loadTestDocument(t, p, testDocument())

	cmd := NewMoveSectionItemToNewSection(2, 0, 0)
	cmd.RemoveOriginalSectionIfEmpty = true
	result := mustExecute(t, p, cmd)

	snapshot := p.Snapshot()
	require.Len(t, snapshot.Layout.Sections, 3)
	assert.Equal(t, []string{"c1"}, itemIDs(snapshot.Layout.Sections[0]))
	assert.Equal(t, []string{"", "A", "B"}, sectionTitles(snapshot))
	moved, ok := FirstEvent[*LayoutSectionItemMovedToNewSection](result)
	require.True(t, ok)
	assert.True(t, moved.SourceSectionRemoved)
	assert.Equal(t, 0, moved.ToSectionIndex)
}

func TestProcessorRemoveSectionItemEager(t *testing.T) {
	p := newTestProcessor(t, newStubBackend())
	loadTestDocument(t, p, testDocument())

	cmd := NewRemoveSectionItem(2, -1, "")
	cmd.Eager = true
	result := mustExecute(t, p, cmd)

	assert.Equal(t, []string{"A", "B"}, sectionTitles(p.Snapshot()))
	removed, ok := FirstEvent[*LayoutSectionItemRemoved](result)
	require.True(t, ok)
	assert.True(t, removed.SectionRemoved)
}

func TestProcessorStashRoundTripAndUndo(t *testing.T) {
	p := newTestProcessor(t, newStubBackend())
	loadTestDocument(t, p, testDocument())

	mustExecute(t, p, NewRemoveSectionItem(0, 0, "parked"))
	snapshot := p.Snapshot()
	assert.Equal(t, []string{"a2"}, itemIDs(snapshot.Layout.Sections[0]))
	require.Contains(t, snapshot.Stash, "parked")

	mustExecute(t, p, NewAddSectionItems(2, -1, FromStash("parked")))
	snapshot = p.Snapshot()
	assert.Equal(t, []string{"c1", "a1"}, itemIDs(snapshot.Layout.Sections[2]))
	assert.NotContains(t, snapshot.Stash, "parked")

	cmdErr := executeErr(t, p, NewAddSectionItems(1, -1, FromStash("parked")))
	assert.Equal(t, UserError, cmdErr.Kind)

	mustExecute(t, p, NewUndoLayoutChanges())
	snapshot = p.Snapshot()
	assert.Equal(t, []string{"c1"}, itemIDs(snapshot.Layout.Sections[2]))
	assert.Contains(t, snapshot.Stash, "parked")
}

func TestProcessorUndoTwiceRestoresOriginalLayout(t *testing.T) {
	p := newTestProcessor(t, newStubBackend())
	doc := testDocument()
	loadTestDocument(t, p, doc)
	original := p.Snapshot().Layout

	mustExecute(t, p, NewAddLayoutSection(-1, SectionHeader{Title: "D"}))
	mustExecute(t, p, NewResizeSectionItemWidth(0, 0, 3))
	require.Len(t, p.Snapshot().History, 2)

	first := mustExecute(t, p, NewUndoLayoutChanges())
	changed, ok := FirstEvent[*LayoutChanged](first)
	require.True(t, ok)
	assert.Equal(t, 1, changed.Undone)
	assert.Equal(t, 6, p.Snapshot().Layout.Sections[0].Items[0].Size.XL.GridWidth)

	mustExecute(t, p, NewUndoLayoutChanges())
	snapshot := p.Snapshot()
	assert.Equal(t, original, snapshot.Layout)
	assert.Empty(t, snapshot.History)

	cmdErr := executeErr(t, p, NewUndoLayoutChanges())
	assert.Equal(t, UserError, cmdErr.Kind)
}

func TestProcessorUndoUntilCorrelation(t *testing.T) {
	p := newTestProcessor(t, newStubBackend())
	loadTestDocument(t, p, testDocument())

	mustExecute(t, p, WithCorrelation(NewAddLayoutSection(-1, SectionHeader{Title: "D"}), "first"))
	mustExecute(t, p, NewAddLayoutSection(-1, SectionHeader{Title: "E"}))
	mustExecute(t, p, NewChangeLayoutSectionHeader(0, SectionHeader{Description: "desc"}, true))

	cmd := NewUndoLayoutChanges()
	cmd.UntilCorrelationID = "first"
	result := mustExecute(t, p, cmd)

	snapshot := p.Snapshot()
	assert.Equal(t, []string{"A", "B", "C"}, sectionTitles(snapshot))
	assert.Empty(t, snapshot.Layout.Sections[0].Header.Description)
	changed, _ := FirstEvent[*LayoutChanged](result)
	assert.Equal(t, 3, changed.Undone)
}

func TestProcessorUndoSelector(t *testing.T) {
	p := newTestProcessor(t, newStubBackend())
	loadTestDocument(t, p, testDocument())
	mustExecute(t, p, NewAddLayoutSection(-1, SectionHeader{Title: "D"}))
	mustExecute(t, p, NewAddLayoutSection(-1, SectionHeader{Title: "E"}))

	var seen []string
	cmd := NewUndoLayoutChanges()
	cmd.Selector = func(history []UndoEntry) int {
		for _, entry := range history {
			seen = append(seen, entry.Command)
		}
		return len(history) + 3
	}
	cmdErr := executeErr(t, p, cmd)
	assert.Equal(t, UserError, cmdErr.Kind)
	assert.Equal(t, []string{CmdAddLayoutSection, CmdAddLayoutSection}, seen)
	assert.Len(t, p.Snapshot().History, 2)
}

func TestProcessorHistoryIsBounded(t *testing.T) {
	p := newTestProcessor(t, newStubBackend(), func(o *Options) { o.HistoryLimit = 2 })
	loadTestDocument(t, p, testDocument())

	for i := 0; i < 4; i++ {
		mustExecute(t, p, NewResizeSectionItemWidth(0, 0, i+1))
	}
	history := p.Snapshot().History
	require.Len(t, history, 2)
	assert.Equal(t, 3, history[0].Layout.Sections[0].Items[0].Size.XL.GridWidth)
}

func TestProcessorCorrelationPropagatesToEvents(t *testing.T) {
	p := newTestProcessor(t, newStubBackend())
	loadTestDocument(t, p, testDocument())
	events, cancel := p.Events().Subscribe(ForCorrelation("corr-7"))
	defer cancel()

	result := mustExecute(t, p, WithCorrelation(NewRenameDashboard("Renamed"), "corr-7"))

	assert.Equal(t, "corr-7", result.CorrelationID)
	require.Len(t, result.Events, 2)
	for _, event := range result.Events {
		assert.Equal(t, "corr-7", event.Meta().CorrelationID)
	}
	first := <-events
	assert.Equal(t, EventCommandStarted, first.EventType())
	second := <-events
	assert.Equal(t, EventDashboardRenamed, second.EventType())

	ctx := ContextWithCorrelation(context.Background(), "from-ctx")
	result, err := p.Execute(ctx, NewRenameDashboard("Again"))
	require.NoError(t, err)
	assert.Equal(t, "from-ctx", result.CorrelationID)
}

func TestProcessorValidationFailureEmitsCommandFailed(t *testing.T) {
	p := newTestProcessor(t, newStubBackend())
	loadTestDocument(t, p, testDocument())

	result, err := p.Execute(context.Background(), NewRenameDashboard(""))
	require.Error(t, err)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, UserError, cmdErr.Kind)
	assert.Contains(t, cmdErr.Details, "fields")
	failed, ok := FirstEvent[*CommandFailed](result)
	require.True(t, ok)
	assert.Equal(t, CmdRenameDashboard, failed.Command)
	assert.Equal(t, "Sales", p.Snapshot().Title)
}

type unknownCommand struct {
	CommandMeta
}

func (unknownCommand) CommandType() string { return "test.unknown" }

func TestProcessorRejectsUnknownCommand(t *testing.T) {
	p := newTestProcessor(t, newStubBackend())

	result, err := p.Execute(context.Background(), unknownCommand{})
	require.Error(t, err)

	assert.Equal(t, UserError, result.Err.Kind)
	rejected := EventsOf[*CommandRejected](result)
	require.Len(t, rejected, 1)
	assert.Equal(t, "test.unknown", rejected[0].Command)
	assert.Empty(t, EventsOf[*CommandFailed](result))
}

type panicCommand struct {
	CommandMeta
}

func (panicCommand) CommandType() string { return "test.panic" }

func TestProcessorRecoversFromHandlerPanic(t *testing.T) {
	p := newTestProcessor(t, newStubBackend())
	p.RegisterHandler("test.panic", func(*Turn, Command) error {
		panic("boom")
	})

	result, err := p.Execute(context.Background(), panicCommand{})
	require.Error(t, err)
	assert.Equal(t, InternalError, result.Err.Kind)
	assert.ErrorContains(t, result.Err.Cause, "boom")
	_, ok := FirstEvent[*CommandFailed](result)
	assert.True(t, ok)

	loadTestDocument(t, p, testDocument())
	assert.True(t, p.Snapshot().Loaded)
}

func TestProcessorPlainErrorsBecomeInternal(t *testing.T) {
	p := newTestProcessor(t, newStubBackend())
	p.RegisterHandler("test.panic", func(*Turn, Command) error {
		return errors.New("disk on fire")
	})

	result, err := p.Execute(context.Background(), panicCommand{})
	require.Error(t, err)
	assert.Equal(t, InternalError, result.Err.Kind)
	assert.Equal(t, "disk on fire", result.Err.Message)
}

func TestProcessorInterleavesWhileHandlerAwaits(t *testing.T) {
	backend := newStubBackend()
	backend.displayFormGate = make(chan struct{})
	backend.entered = make(chan struct{}, 1)
	p := newTestProcessor(t, backend)
	loadTestDocument(t, p, testDocument())
	ctx := context.Background()

	add, err := p.Dispatch(ctx, NewAddAttributeFilter(IdentifierRef("label.product", "displayForm"), -1))
	require.NoError(t, err)
	select {
	case <-backend.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("add attribute filter never reached the backend")
	}

	rename := mustExecute(t, p, NewRenameDashboard("While waiting"))
	assert.False(t, rename.Failed())
	select {
	case <-add.Done():
		t.Fatal("suspended command finished before its backend call returned")
	default:
	}

	close(backend.displayFormGate)
	result := add.Wait(ctx)
	require.Nil(t, result.Err)
	snapshot := p.Snapshot()
	assert.Equal(t, "While waiting", snapshot.Title)
	added, ok := snapshot.FilterContext.AttributeFilterByDisplayForm(IdentifierRef("label.product", "displayForm"))
	require.True(t, ok)
	assert.Equal(t, "Title product", added.Title)
}

func TestProcessorStartsHandlersInDispatchOrder(t *testing.T) {
	p := newTestProcessor(t, newStubBackend())
	loadTestDocument(t, p, testDocument())
	ctx := context.Background()

	var pendings []*Pending
	for i := 1; i <= 5; i++ {
		pending, err := p.Dispatch(ctx, NewAddLayoutSection(-1, SectionHeader{Title: string(rune('D' + i - 1))}))
		require.NoError(t, err)
		pendings = append(pendings, pending)
	}
	for _, pending := range pendings {
		require.Nil(t, pending.Wait(ctx).Err)
	}
	assert.Equal(t, []string{"A", "B", "C", "D", "E", "F", "G", "H"}, sectionTitles(p.Snapshot()))
}

func TestProcessorSnapshotsNeverSeeHalfAppliedBatches(t *testing.T) {
	p := newTestProcessor(t, newStubBackend())
	loadTestDocument(t, p, testDocument())

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			total := 0
			for _, section := range p.Snapshot().Layout.Sections {
				total += len(section.Items)
			}
			assert.Equal(t, 5, total)
		}
	}()
	for i := 0; i < 20; i++ {
		mustExecute(t, p, NewMoveSectionItem(0, 0, 2, -1))
		mustExecute(t, p, NewMoveSectionItem(2, -1+len(p.Snapshot().Layout.Sections[2].Items), 0, -1))
	}
	close(stop)
	wg.Wait()
}

func TestProcessorDispatchRequiresStart(t *testing.T) {
	p := NewProcessor(Options{})
	defer p.Close()

	_, err := p.Dispatch(context.Background(), NewSaveDashboard())
	assert.ErrorIs(t, err, errProcessorStopped)
	_, err = p.Dispatch(context.Background(), nil)
	assert.ErrorIs(t, err, errNilCommand)
}

func TestProcessorRequiresLoadedDashboard(t *testing.T) {
	p := newTestProcessor(t, newStubBackend())

	cmdErr := executeErr(t, p, NewRenameDashboard("x"))
	assert.Equal(t, UserError, cmdErr.Kind)

	result := mustExecute(t, p, NewAddLayoutSection(0, SectionHeader{Title: "scratch"}))
	assert.False(t, result.Failed())
}

func TestProcessorSaveDashboard(t *testing.T) {
	backend := newStubBackend()
	p := newTestProcessor(t, backend)
	doc := testDocument()
	doc.Ref = ObjRef{}
	loadTestDocument(t, p, doc)

	result := mustExecute(t, p, NewSaveDashboard())

	saved, ok := FirstEvent[*DashboardSaved](result)
	require.True(t, ok)
	assert.Equal(t, "saved-1", saved.Dashboard.Ref.Identifier)
	snapshot := p.Snapshot()
	assert.Equal(t, "saved-1", snapshot.Ref.Identifier)
	require.NotNil(t, snapshot.Updated)
	require.Len(t, backend.saved, 1)
	assert.Equal(t, "Sales", backend.saved[0].Title)
}

func TestProcessorExportAndScheduleRespectPermissions(t *testing.T) {
	backend := newStubBackend()
	p := newTestProcessor(t, backend)
	loadTestDocument(t, p, testDocument())

	result := mustExecute(t, p, NewExportDashboardToPDF())
	resolved, ok := FirstEvent[*ExportToPDFResolved](result)
	require.True(t, ok)
	assert.Equal(t, "/exports/sales.pdf", resolved.Result.URI)
	require.Len(t, backend.exports, 1)
	assert.Len(t, backend.exports[0].Filters, 3)

	schedule := ScheduledMail{Title: "Weekly", Subject: "Sales", Recipients: []string{"ops@example.com"}, Cron: "0 8 * * 1"}
	result = mustExecute(t, p, NewCreateScheduledEmail(schedule))
	created, ok := FirstEvent[*ScheduledEmailCreated](result)
	require.True(t, ok)
	assert.Equal(t, []string{"pdf"}, created.Schedule.Attachments)
	assert.Equal(t, "sales", created.Schedule.Dashboard.Identifier)

	bad := schedule
	bad.Recipients = []string{"not-an-email"}
	cmdErr := executeErr(t, p, NewCreateScheduledEmail(bad))
	assert.Equal(t, UserError, cmdErr.Kind)

	backend.permissions = Permissions{}
	cmdErr = executeErr(t, p, NewExportDashboardToPDF())
	assert.Equal(t, UserError, cmdErr.Kind)
	cmdErr = executeErr(t, p, NewCreateScheduledEmail(schedule))
	assert.Equal(t, UserError, cmdErr.Kind)
}

func TestProcessorCloseResolvesQueuedCommands(t *testing.T) {
	p := NewProcessor(Options{})
	p.Start(context.Background())
	p.Close()

	_, err := p.Dispatch(context.Background(), NewSaveDashboard())
	assert.ErrorIs(t, err, errProcessorClosed)
}

func TestProcessorUndoSectionMovesInReverseOrder(t *testing.T) {
	p := newTestProcessor(t, newStubBackend())
	loadTestDocument(t, p, testDocument())

	steps := []struct {
		cmd  Command
		want []string
	}{
		{cmd: NewMoveLayoutSection(0, -1), want: []string{"B", "C", "A"}},
		{cmd: NewMoveLayoutSection(0, -1), want: []string{"C", "A", "B"}},
		{cmd: NewUndoLayoutChanges(), want: []string{"B", "C", "A"}},
		{cmd: NewUndoLayoutChanges(), want: []string{"A", "B", "C"}},
	}
	for i, step := range steps {
		mustExecute(t, p, step.cmd)
		assert.Equal(t, step.want, sectionTitles(p.Snapshot()), "step %d", i)
	}
	assert.Empty(t, p.Snapshot().History)
}

func TestProcessorRemoveLayoutSectionStashAndUndo(t *testing.T) {
	p := newTestProcessor(t, newStubBackend())
	loadTestDocument(t, p, testDocument())

	result := mustExecute(t, p, NewRemoveLayoutSection(1, "parked"))

	removed, ok := FirstEvent[*LayoutSectionRemoved](result)
	require.True(t, ok)
	assert.Equal(t, 1, removed.Index)
	assert.Equal(t, "parked", removed.StashIdentifier)
	snapshot := p.Snapshot()
	assert.Equal(t, []string{"A", "C"}, sectionTitles(snapshot))
	require.Contains(t, snapshot.Stash, "parked")
	assert.Equal(t, []string{"y", "z"}, itemIDs(Section{Items: snapshot.Stash["parked"]}))

	mustExecute(t, p, NewUndoLayoutChanges())
	snapshot = p.Snapshot()
	assert.Equal(t, []string{"A", "B", "C"}, sectionTitles(snapshot))
	assert.Equal(t, []string{"y", "z"}, itemIDs(snapshot.Layout.Sections[1]))
	assert.NotContains(t, snapshot.Stash, "parked")
	assert.Empty(t, snapshot.History)
}

func TestProcessorReplaceSectionItem(t *testing.T) {
	cases := []struct {
		name      string
		item      ItemOrStash
		stash     string
		wantIDs   []string
		wantStash bool
		wantErr   bool
	}{
		{name: "new widget", item: FromItem(testItem("x", 6)), wantIDs: []string{"x", "a2"}},
		{name: "previous item stashed", item: FromItem(testItem("x", 6)), stash: "old", wantIDs: []string{"x", "a2"}, wantStash: true},
		{name: "same widget in place", item: FromItem(testItem("a1", 3)), wantIDs: []string{"a1", "a2"}},
		{name: "widget used elsewhere", item: FromItem(testItem("y", 6)), wantErr: true},
		{name: "unknown stash", item: FromStash("ghost"), wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestProcessor(t, newStubBackend())
			loadTestDocument(t, p, testDocument())

			cmd := NewReplaceSectionItem(0, 0, tc.item, tc.stash)
			if tc.wantErr {
				cmdErr := executeErr(t, p, cmd)
				assert.Equal(t, UserError, cmdErr.Kind)
				assert.Equal(t, []string{"a1", "a2"}, itemIDs(p.Snapshot().Layout.Sections[0]))
				assert.Empty(t, p.Snapshot().History)
				return
			}

			result := mustExecute(t, p, cmd)

			replaced, ok := FirstEvent[*LayoutSectionItemReplaced](result)
			require.True(t, ok)
			assert.Equal(t, "a1", replaced.Previous.Widget.LocalIdentifier)
			snapshot := p.Snapshot()
			assert.Equal(t, tc.wantIDs, itemIDs(snapshot.Layout.Sections[0]))
			if tc.wantStash {
				require.Contains(t, snapshot.Stash, tc.stash)
				assert.Equal(t, "a1", snapshot.Stash[tc.stash][0].Widget.LocalIdentifier)
			} else {
				assert.Empty(t, snapshot.Stash)
			}
		})
	}
}

func TestProcessorResizeSectionItemHeight(t *testing.T) {
	p := newTestProcessor(t, newStubBackend())
	doc := testDocument()
	doc.Layout.Sections[1].Items[0].Size.XL.HeightAsRatio = 50
	loadTestDocument(t, p, doc)

	result := mustExecute(t, p, NewResizeSectionItemHeight(1, []int{0, 1}, 22))

	resized, ok := FirstEvent[*LayoutSectionItemsHeightResized](result)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1}, resized.ItemIndexes)
	items := p.Snapshot().Layout.Sections[1].Items
	for _, item := range items {
		assert.Equal(t, 22, item.Size.XL.GridHeight)
		assert.Zero(t, item.Size.XL.HeightAsRatio)
	}
	assert.Equal(t, 10, p.Snapshot().Layout.Sections[0].Items[0].Size.XL.GridHeight)

	cmdErr := executeErr(t, p, NewResizeSectionItemHeight(1, []int{0, 2}, 5))
	assert.Equal(t, UserError, cmdErr.Kind)
	assert.Equal(t, 22, p.Snapshot().Layout.Sections[1].Items[0].Size.XL.GridHeight)

	mustExecute(t, p, NewUndoLayoutChanges())
	restored := p.Snapshot().Layout.Sections[1].Items[0].Size.XL
	assert.Equal(t, 10, restored.GridHeight)
	assert.Equal(t, 50.0, restored.HeightAsRatio)
}

func TestProcessorUniqueWidgetsCompareRefs(t *testing.T) {
	cases := []struct {
		name    string
		placed  ObjRef
		added   Widget
		wantErr bool
	}{
		{name: "untyped identifier", placed: IdentifierRef("w1", "widget"), added: Widget{Type: WidgetInsight, LocalIdentifier: "n", Ref: ObjRef{Identifier: "w1"}}, wantErr: true},
		{name: "type case differs", placed: IdentifierRef("w1", "widget"), added: Widget{Type: WidgetInsight, LocalIdentifier: "n", Ref: IdentifierRef("w1", "Widget")}, wantErr: true},
		{name: "uri on one side", placed: ObjRef{Identifier: "w1", URI: "/widgets/1"}, added: Widget{Type: WidgetInsight, LocalIdentifier: "n", Ref: IdentifierRef("w1", "widget")}, wantErr: true},
		{name: "same local identifier", placed: IdentifierRef("w1", "widget"), added: Widget{Type: WidgetInsight, LocalIdentifier: "a1", Ref: IdentifierRef("w2", "widget")}, wantErr: true},
		{name: "distinct uris", placed: URIRef("/widgets/1"), added: Widget{Type: WidgetInsight, LocalIdentifier: "n", Ref: URIRef("/widgets/2")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newTestProcessor(t, newStubBackend())
			doc := testDocument()
			doc.Layout.Sections[0].Items[0].Widget.Ref = tc.placed
			loadTestDocument(t, p, doc)

			item := testItem("n", 4)
			item.Widget = tc.added
			cmd := NewAddSectionItems(1, -1, FromItem(item))
			if !tc.wantErr {
				mustExecute(t, p, cmd)
				assert.Len(t, p.Snapshot().Layout.Sections[1].Items, 3)
				return
			}
			cmdErr := executeErr(t, p, cmd)
			assert.Equal(t, UserError, cmdErr.Kind)
			assert.Len(t, p.Snapshot().Layout.Sections[1].Items, 2)
		})
	}
}
