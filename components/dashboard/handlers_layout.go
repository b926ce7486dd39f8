package dashboard

func registerLayoutHandlers(p *Processor) {
	register(p, addLayoutSection)
	register(p, removeLayoutSection)
	register(p, changeLayoutSectionHeader)
	register(p, moveLayoutSection)
	register(p, addSectionItems)
	register(p, replaceSectionItem)
	register(p, moveSectionItem)
	register(p, moveSectionItemToNewSection)
	register(p, removeSectionItem)
	register(p, resizeSectionItemHeight)
	register(p, resizeSectionItemWidth)
	register(p, undoLayoutChanges)
}

func layoutChanged(t *Turn) *LayoutChanged {
	return &LayoutChanged{Layout: t.state().Layout.Clone()}
}

func sectionOutOfRange(index, count int) error {
	if count == 0 {
		return NewUserError("section index %d out of range: layout has no sections", index)
	}
	return NewUserError("section index %d out of range [0, %d]", index, count-1)
}

func itemOutOfRange(sectionIndex, index, count int) error {
	if count == 0 {
		return NewUserError("item index %d out of range: section %d has no items", index, sectionIndex)
	}
	return NewUserError("item index %d out of range [0, %d] in section %d", index, count-1, sectionIndex)
}

// resolveItems expands stash references into items. Each stash may be used once.
func resolveItems(s *State, entries []ItemOrStash) ([]Item, []string, error) {
	items := []Item{}
	var used []string
	seen := map[string]bool{}
	for i, entry := range entries {
		switch {
		case entry.Item != nil && entry.Stash != "":
			return nil, nil, NewUserError("entry %d sets both an item and a stash", i)
		case entry.Item != nil:
			if err := validateItem(*entry.Item); err != nil {
				return nil, nil, err
			}
			items = append(items, entry.Item.Clone())
		case entry.Stash != "":
			stashed, ok := s.Stash[entry.Stash]
			if !ok {
				return nil, nil, NewUserError("stash %q does not exist", entry.Stash)
			}
			if seen[entry.Stash] {
				return nil, nil, NewUserError("stash %q is used more than once", entry.Stash)
			}
			seen[entry.Stash] = true
			items = append(items, cloneItems(stashed)...)
			used = append(used, entry.Stash)
		default:
			return nil, nil, NewUserError("entry %d is empty", i)
		}
	}
	return items, used, nil
}

func validateItem(item Item) error {
	sizes := []*SizeInfo{&item.Size.XL, item.Size.LG, item.Size.MD, item.Size.SM, item.Size.XS}
	for _, size := range sizes {
		if size == nil {
			continue
		}
		if size.GridWidth < 0 || size.GridWidth > GridColumns {
			return NewUserError("item width %d out of range [0, %d]", size.GridWidth, GridColumns)
		}
		if size.GridHeight < 0 || size.HeightAsRatio < 0 {
			return NewUserError("item height must not be negative")
		}
	}
	switch item.Widget.Type {
	case WidgetInsight, WidgetKPI, WidgetPlaceholder:
	default:
		return NewUserError("unknown widget type %q", item.Widget.Type)
	}
	return nil
}

type position struct {
	section, item int
}

// checkUniqueWidgets rejects items whose widget already appears in the
// layout or twice among the items. skip excludes one existing position.
func checkUniqueWidgets(layout Layout, items []Item, skip *position) error {
	var placed []Widget
	for si, section := range layout.Sections {
		for ii, item := range section.Items {
			if skip != nil && skip.section == si && skip.item == ii {
				continue
			}
			if item.Widget.Identity() != "" {
				placed = append(placed, item.Widget)
			}
		}
	}
	for _, item := range items {
		if item.Widget.Identity() == "" || item.Widget.Type == WidgetPlaceholder {
			continue
		}
		if isPlaced(placed, item.Widget) {
			return NewUserError("widget %s is already placed on the dashboard", item.Widget.Identity())
		}
		placed = append(placed, item.Widget)
	}
	return nil
}

func deleteStashes(s *State, ids []string) {
	for _, id := range ids {
		delete(s.Stash, id)
	}
}

func stashItems(s *State, id string, items []Item) {
	if id == "" {
		return
	}
	if s.Stash == nil {
		s.Stash = Stash{}
	}
	s.Stash[id] = cloneItems(items)
}

func addLayoutSection(t *Turn, cmd AddLayoutSection) error {
	s := t.state()
	count := len(s.Layout.Sections)
	index, ok := resolveIndex(cmd.Index, count, count)
	if !ok {
		return NewUserError("section index %d out of range [0, %d]", cmd.Index, count)
	}
	items, used, err := resolveItems(s, cmd.Items)
	if err != nil {
		return err
	}
	if err := checkUniqueWidgets(s.Layout, items, nil); err != nil {
		return err
	}
	section := Section{Header: cmd.Header, Items: items}
	t.ApplyUndoable(func(st *State) {
		st.Layout.Sections = insertSection(st.Layout.Sections, index, section.Clone())
		deleteStashes(st, used)
	})
	t.Emit(&LayoutSectionAdded{Section: section, Index: index, StashesUsed: used}, layoutChanged(t))
	return nil
}

func removeLayoutSection(t *Turn, cmd RemoveLayoutSection) error {
	s := t.state()
	count := len(s.Layout.Sections)
	index, ok := resolveIndex(cmd.Index, count-1, count-1)
	if !ok {
		return sectionOutOfRange(cmd.Index, count)
	}
	section := s.Layout.Sections[index].Clone()
	t.ApplyUndoable(func(st *State) {
		st.Layout.Sections = removeSection(st.Layout.Sections, index)
		stashItems(st, cmd.StashIdentifier, section.Items)
	})
	t.Emit(&LayoutSectionRemoved{Section: section, Index: index, StashIdentifier: cmd.StashIdentifier}, layoutChanged(t))
	return nil
}

func changeLayoutSectionHeader(t *Turn, cmd ChangeLayoutSectionHeader) error {
	s := t.state()
	section, ok := s.Section(cmd.Index)
	if !ok {
		return sectionOutOfRange(cmd.Index, len(s.Layout.Sections))
	}
	header := cmd.Header
	if cmd.Merge {
		if header.Title == "" {
			header.Title = section.Header.Title
		}
		if header.Description == "" {
			header.Description = section.Header.Description
		}
	}
	t.ApplyUndoable(func(st *State) {
		st.Layout.Sections[cmd.Index].Header = header
	})
	t.Emit(&LayoutSectionHeaderChanged{Header: header, Index: cmd.Index}, layoutChanged(t))
	return nil
}

func moveLayoutSection(t *Turn, cmd MoveLayoutSection) error {
	s := t.state()
	count := len(s.Layout.Sections)
	if cmd.SectionIndex >= count {
		return sectionOutOfRange(cmd.SectionIndex, count)
	}
	to, ok := resolveIndex(cmd.ToIndex, count-1, count-1)
	if !ok {
		return NewUserError("target section index %d out of range [0, %d]", cmd.ToIndex, count-1)
	}
	if to == cmd.SectionIndex {
		return NewUserError("section %d is already at index %d", cmd.SectionIndex, to)
	}
	section := s.Layout.Sections[cmd.SectionIndex].Clone()
	t.ApplyUndoable(func(st *State) {
		moved := st.Layout.Sections[cmd.SectionIndex]
		st.Layout.Sections = removeSection(st.Layout.Sections, cmd.SectionIndex)
		st.Layout.Sections = insertSection(st.Layout.Sections, to, moved)
	})
	t.Emit(&LayoutSectionMoved{Section: section, FromIndex: cmd.SectionIndex, ToIndex: to}, layoutChanged(t))
	return nil
}

func addSectionItems(t *Turn, cmd AddSectionItems) error {
	s := t.state()
	section, ok := s.Section(cmd.SectionIndex)
	if !ok {
		return sectionOutOfRange(cmd.SectionIndex, len(s.Layout.Sections))
	}
	itemCount := len(section.Items)
	index, ok := resolveIndex(cmd.ItemIndex, itemCount, itemCount)
	if !ok {
		return NewUserError("item index %d out of range [0, %d] in section %d", cmd.ItemIndex, itemCount, cmd.SectionIndex)
	}
	items, used, err := resolveItems(s, cmd.Items)
	if err != nil {
		return err
	}
	if err := checkUniqueWidgets(s.Layout, items, nil); err != nil {
		return err
	}
	t.ApplyUndoable(func(st *State) {
		target := &st.Layout.Sections[cmd.SectionIndex]
		target.Items = insertItems(target.Items, index, cloneItems(items)...)
		deleteStashes(st, used)
	})
	t.Emit(&LayoutSectionItemsAdded{
		SectionIndex: cmd.SectionIndex,
		StartIndex:   index,
		Items:        items,
		StashesUsed:  used,
	}, layoutChanged(t))
	return nil
}

func replaceSectionItem(t *Turn, cmd ReplaceSectionItem) error {
	s := t.state()
	section, ok := s.Section(cmd.SectionIndex)
	if !ok {
		return sectionOutOfRange(cmd.SectionIndex, len(s.Layout.Sections))
	}
	if cmd.ItemIndex >= len(section.Items) {
		return itemOutOfRange(cmd.SectionIndex, cmd.ItemIndex, len(section.Items))
	}
	items, used, err := resolveItems(s, []ItemOrStash{cmd.Item})
	if err != nil {
		return err
	}
	if err := checkUniqueWidgets(s.Layout, items, &position{cmd.SectionIndex, cmd.ItemIndex}); err != nil {
		return err
	}
	previous := section.Items[cmd.ItemIndex].Clone()
	t.ApplyUndoable(func(st *State) {
		target := &st.Layout.Sections[cmd.SectionIndex]
		target.Items = insertItems(removeItem(target.Items, cmd.ItemIndex), cmd.ItemIndex, cloneItems(items)...)
		deleteStashes(st, used)
		stashItems(st, cmd.StashIdentifier, []Item{previous})
	})
	t.Emit(&LayoutSectionItemReplaced{
		SectionIndex:    cmd.SectionIndex,
		ItemIndex:       cmd.ItemIndex,
		Items:           items,
		Previous:        previous,
		StashIdentifier: cmd.StashIdentifier,
		StashesUsed:     used,
	}, layoutChanged(t))
	return nil
}

func moveSectionItem(t *Turn, cmd MoveSectionItem) error {
	s := t.state()
	count := len(s.Layout.Sections)
	item, ok := s.Item(cmd.SectionIndex, cmd.ItemIndex)
	if !ok {
		if cmd.SectionIndex >= count {
			return sectionOutOfRange(cmd.SectionIndex, count)
		}
		return itemOutOfRange(cmd.SectionIndex, cmd.ItemIndex, s.Layout.ItemCount(cmd.SectionIndex))
	}
	toSection, ok := resolveIndex(cmd.ToSectionIndex, count-1, count-1)
	if !ok {
		return NewUserError("target section index %d out of range [0, %d]", cmd.ToSectionIndex, count-1)
	}
	maxIndex := len(s.Layout.Sections[toSection].Items)
	if toSection == cmd.SectionIndex {
		maxIndex--
	}
	toItem, ok := resolveIndex(cmd.ToItemIndex, maxIndex, maxIndex)
	if !ok {
		return NewUserError("target item index %d out of range [0, %d] in section %d", cmd.ToItemIndex, maxIndex, toSection)
	}
	if toSection == cmd.SectionIndex && toItem == cmd.ItemIndex {
		return NewUserError("item %d is already at index %d in section %d", cmd.ItemIndex, toItem, toSection)
	}
	item = item.Clone()
	t.ApplyUndoable(func(st *State) {
		source := &st.Layout.Sections[cmd.SectionIndex]
		moved := source.Items[cmd.ItemIndex]
		source.Items = removeItem(source.Items, cmd.ItemIndex)
		target := &st.Layout.Sections[toSection]
		target.Items = insertItems(target.Items, toItem, moved)
	})
	t.Emit(&LayoutSectionItemMoved{
		Item:             item,
		FromSectionIndex: cmd.SectionIndex,
		ToSectionIndex:   toSection,
		FromIndex:        cmd.ItemIndex,
		ToIndex:          toItem,
	}, layoutChanged(t))
	return nil
}

func moveSectionItemToNewSection(t *Turn, cmd MoveSectionItemToNewSection) error {
	s := t.state()
	count := len(s.Layout.Sections)
	item, ok := s.Item(cmd.SectionIndex, cmd.ItemIndex)
	if !ok {
		if cmd.SectionIndex >= count {
			return sectionOutOfRange(cmd.SectionIndex, count)
		}
		return itemOutOfRange(cmd.SectionIndex, cmd.ItemIndex, s.Layout.ItemCount(cmd.SectionIndex))
	}
	toSection, ok := resolveIndex(cmd.ToSectionIndex, count, count)
	if !ok {
		return NewUserError("target section index %d out of range [0, %d]", cmd.ToSectionIndex, count)
	}
	removeSource := cmd.RemoveOriginalSectionIfEmpty && len(s.Layout.Sections[cmd.SectionIndex].Items) == 1
	finalIndex := toSection
	if removeSource && cmd.SectionIndex < toSection {
		finalIndex--
	}
	item = item.Clone()
	t.ApplyUndoable(func(st *State) {
		source := &st.Layout.Sections[cmd.SectionIndex]
		moved := source.Items[cmd.ItemIndex]
		source.Items = removeItem(source.Items, cmd.ItemIndex)
		st.Layout.Sections = insertSection(st.Layout.Sections, toSection, Section{Items: []Item{moved}})
		if removeSource {
			sourceIndex := cmd.SectionIndex
			if toSection <= sourceIndex {
				sourceIndex++
			}
			st.Layout.Sections = removeSection(st.Layout.Sections, sourceIndex)
		}
	})
	t.Emit(&LayoutSectionItemMovedToNewSection{
		Item:                 item,
		FromSectionIndex:     cmd.SectionIndex,
		ToSectionIndex:       finalIndex,
		FromIndex:            cmd.ItemIndex,
		SourceSectionRemoved: removeSource,
	}, layoutChanged(t))
	return nil
}

func removeSectionItem(t *Turn, cmd RemoveSectionItem) error {
	s := t.state()
	section, ok := s.Section(cmd.SectionIndex)
	if !ok {
		return sectionOutOfRange(cmd.SectionIndex, len(s.Layout.Sections))
	}
	itemCount := len(section.Items)
	index, ok := resolveIndex(cmd.ItemIndex, itemCount-1, itemCount-1)
	if !ok {
		return itemOutOfRange(cmd.SectionIndex, cmd.ItemIndex, itemCount)
	}
	item := section.Items[index].Clone()
	sectionRemoved := cmd.Eager && itemCount == 1
	t.ApplyUndoable(func(st *State) {
		target := &st.Layout.Sections[cmd.SectionIndex]
		target.Items = removeItem(target.Items, index)
		stashItems(st, cmd.StashIdentifier, []Item{item})
		if sectionRemoved {
			st.Layout.Sections = removeSection(st.Layout.Sections, cmd.SectionIndex)
		}
	})
	t.Emit(&LayoutSectionItemRemoved{
		Item:            item,
		SectionIndex:    cmd.SectionIndex,
		ItemIndex:       index,
		SectionRemoved:  sectionRemoved,
		StashIdentifier: cmd.StashIdentifier,
	}, layoutChanged(t))
	return nil
}

func resizeSectionItemHeight(t *Turn, cmd ResizeSectionItemHeight) error {
	s := t.state()
	section, ok := s.Section(cmd.SectionIndex)
	if !ok {
		return sectionOutOfRange(cmd.SectionIndex, len(s.Layout.Sections))
	}
	for _, index := range cmd.ItemIndexes {
		if index >= len(section.Items) {
			return itemOutOfRange(cmd.SectionIndex, index, len(section.Items))
		}
	}
	indexes := append([]int(nil), cmd.ItemIndexes...)
	t.ApplyUndoable(func(st *State) {
		items := st.Layout.Sections[cmd.SectionIndex].Items
		for _, index := range indexes {
			items[index].Size.XL.GridHeight = cmd.Height
			items[index].Size.XL.HeightAsRatio = 0
		}
	})
	t.Emit(&LayoutSectionItemsHeightResized{
		SectionIndex: cmd.SectionIndex,
		ItemIndexes:  indexes,
		Height:       cmd.Height,
	}, layoutChanged(t))
	return nil
}

func resizeSectionItemWidth(t *Turn, cmd ResizeSectionItemWidth) error {
	s := t.state()
	section, ok := s.Section(cmd.SectionIndex)
	if !ok {
		return sectionOutOfRange(cmd.SectionIndex, len(s.Layout.Sections))
	}
	if cmd.ItemIndex >= len(section.Items) {
		return itemOutOfRange(cmd.SectionIndex, cmd.ItemIndex, len(section.Items))
	}
	t.ApplyUndoable(func(st *State) {
		st.Layout.Sections[cmd.SectionIndex].Items[cmd.ItemIndex].Size.XL.GridWidth = cmd.Width
	})
	t.Emit(&LayoutSectionItemWidthResized{
		SectionIndex: cmd.SectionIndex,
		ItemIndex:    cmd.ItemIndex,
		Width:        cmd.Width,
	}, layoutChanged(t))
	return nil
}

func undoLayoutChanges(t *Turn, cmd UndoLayoutChanges) error {
	history := t.state().History
	if len(history) == 0 {
		return NewUserError("nothing to undo")
	}
	index := 0
	switch {
	case cmd.Selector != nil:
		index = cmd.Selector(append([]UndoEntry(nil), history...))
		if index < 0 || index >= len(history) {
			return NewUserError("undo selector returned %d for a history of %d entries", index, len(history))
		}
	case cmd.UntilCorrelationID != "":
		index = -1
		for i, entry := range history {
			if entry.CorrelationID == cmd.UntilCorrelationID {
				index = i
				break
			}
		}
		if index < 0 {
			return NewUserError("no undoable command with correlation id %q", cmd.UntilCorrelationID)
		}
	}
	entry := history[index]
	t.Apply(func(st *State) {
		st.Layout = entry.Layout.Clone()
		st.Stash = entry.Stash.Clone()
		st.History = append([]UndoEntry(nil), history[index+1:]...)
	})
	changed := layoutChanged(t)
	changed.Undone = index + 1
	t.Emit(changed)
	return nil
}
