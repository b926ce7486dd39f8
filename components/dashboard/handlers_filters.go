package dashboard

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// AllTimeGranularity is the granularity stored on a cleared date filter.
const AllTimeGranularity = "GDC.time.year"

const absoluteDateLayout = "2006-01-02"

func registerFilterHandlers(p *Processor) {
	register(p, addAttributeFilter)
	register(p, removeAttributeFilters)
	register(p, moveAttributeFilter)
	register(p, changeAttributeFilterSelection)
	register(p, setAttributeFilterParents)
	register(p, changeDateFilterSelection)
	register(p, clearDateFilterSelection)
}

func filterContextChanged(t *Turn) *FilterContextChanged {
	return &FilterContextChanged{FilterContext: t.state().FilterContext.Clone()}
}

func unknownFilter(localID string) error {
	return NewUserError("attribute filter %q does not exist", localID)
}

func validateParents(fc FilterContext, child string, parents []ParentFilter) error {
	seen := map[string]bool{}
	for _, parent := range parents {
		id := parent.FilterLocalIdentifier
		if id == child {
			return NewUserError("attribute filter %q cannot be its own parent", child)
		}
		if seen[id] {
			return NewUserError("parent filter %q listed twice", id)
		}
		seen[id] = true
		if _, _, ok := fc.AttributeFilter(id); !ok {
			return NewUserError("parent filter %q does not exist", id)
		}
	}
	if child != "" && fc.wouldCycle(child, parents) {
		return NewUserError("parent filters of %q would form a cycle", child)
	}
	return nil
}

func checkCanAddFilter(fc FilterContext, displayForm ObjRef) error {
	if n := len(fc.AttributeFilters()); n >= MaxAttributeFilters {
		return NewUserError("filter context already holds the maximum of %d attribute filters", MaxAttributeFilters)
	}
	if existing, ok := fc.AttributeFilterByDisplayForm(displayForm); ok {
		return NewUserError("display form %s is already filtered by %q", displayForm, existing.LocalIdentifier)
	}
	return nil
}

func addAttributeFilter(t *Turn, cmd AddAttributeFilter) error {
	if cmd.DisplayForm.IsZero() {
		return NewUserError("display form is required")
	}
	if err := checkCanAddFilter(t.state().FilterContext, cmd.DisplayForm); err != nil {
		return err
	}
	backend := t.Backend()
	if backend == nil {
		return NewInternalError(errMissingBackend, "resolve display form %s", cmd.DisplayForm)
	}
	df, err := AwaitValue(t, func(ctx context.Context) (DisplayForm, error) {
		return backend.Attributes().DisplayForm(ctx, cmd.DisplayForm)
	})
	if err != nil {
		if kind, ok := BackendErrorKindOf(err); ok && kind == BackendNoData {
			return NewUserError("display form %s does not exist", cmd.DisplayForm)
		}
		return err
	}

	// The state may have changed while the lookup was in flight.
	fc := t.state().FilterContext
	if err := checkCanAddFilter(fc, df.Ref); err != nil {
		return err
	}
	count := len(fc.AttributeFilters())
	index, ok := resolveIndex(cmd.Index, count, count)
	if !ok {
		return NewUserError("filter index %d out of range [0, %d]", cmd.Index, count)
	}
	if err := validateParents(fc, "", cmd.ParentFilters); err != nil {
		return err
	}

	filter := AttributeFilter{
		LocalIdentifier:  t.p.opts.NewID(),
		DisplayForm:      df.Ref,
		Title:            df.Title,
		Negative:         true,
		FilterElementsBy: cloneParents(cmd.ParentFilters),
		SelectionMode:    cmd.SelectionMode,
	}
	if filter.SelectionMode == "" {
		filter.SelectionMode = SelectionMulti
	}
	if cmd.InitialSelection != nil {
		filter.Elements = cmd.InitialSelection.Clone()
		filter.Negative = cmd.InitialNegative
	}
	if filter.SelectionMode == SelectionSingle {
		if filter.Negative || len(filter.Elements.URIs)+len(filter.Elements.Values) > 1 {
			return NewUserError("single selection filters select exactly one element")
		}
	}
	t.Apply(func(st *State) {
		pos := st.FilterContext.filterItemIndex(index)
		added := filter.Clone()
		items := st.FilterContext.Filters
		items = append(items, FilterContextItem{})
		copy(items[pos+1:], items[pos:])
		items[pos] = FilterContextItem{AttributeFilter: &added}
		st.FilterContext.Filters = items
	})
	t.Emit(&AttributeFilterAdded{Filter: filter, Index: index}, filterContextChanged(t))
	return nil
}

func removeAttributeFilters(t *Turn, cmd RemoveAttributeFilters) error {
	fc := t.state().FilterContext.Clone()
	removed := make(map[string]AttributeFilter, len(cmd.FilterLocalIdentifiers))
	order := make([]string, 0, len(cmd.FilterLocalIdentifiers))
	for _, id := range cmd.FilterLocalIdentifiers {
		filter, _, ok := fc.AttributeFilter(id)
		if !ok {
			return unknownFilter(id)
		}
		if _, dup := removed[id]; !dup {
			order = append(order, id)
		}
		removed[id] = filter.Clone()
	}

	var affected []string
	for _, filter := range fc.AttributeFilters() {
		if _, gone := removed[filter.LocalIdentifier]; gone {
			continue
		}
		for _, parent := range filter.FilterElementsBy {
			if _, gone := removed[parent.FilterLocalIdentifier]; gone {
				affected = append(affected, filter.LocalIdentifier)
				break
			}
		}
	}

	t.Apply(func(st *State) {
		kept := st.FilterContext.Filters[:0]
		for _, item := range st.FilterContext.Filters {
			if item.AttributeFilter != nil {
				if _, gone := removed[item.AttributeFilter.LocalIdentifier]; gone {
					continue
				}
			}
			kept = append(kept, item)
		}
		st.FilterContext.Filters = kept
		for _, id := range affected {
			child := st.FilterContext.attributeFilterPtr(id)
			parents := make([]ParentFilter, 0, len(child.FilterElementsBy))
			for _, parent := range child.FilterElementsBy {
				if _, gone := removed[parent.FilterLocalIdentifier]; !gone {
					parents = append(parents, parent)
				}
			}
			child.FilterElementsBy = parents
		}
	})

	events := make([]Event, 0, len(order)+len(affected)+1)
	for _, id := range order {
		events = append(events, &AttributeFilterRemoved{Filter: removed[id], Children: fc.Children(id)})
	}
	current := t.state().FilterContext
	for _, id := range affected {
		child, _, _ := current.AttributeFilter(id)
		events = append(events, &AttributeFilterParentChanged{Filter: child.Clone()})
	}
	events = append(events, filterContextChanged(t))
	t.Emit(events...)
	return nil
}

func moveAttributeFilter(t *Turn, cmd MoveAttributeFilter) error {
	fc := t.state().FilterContext
	filter, from, ok := fc.AttributeFilter(cmd.FilterLocalIdentifier)
	if !ok {
		return unknownFilter(cmd.FilterLocalIdentifier)
	}
	count := len(fc.AttributeFilters())
	to, ok := resolveIndex(cmd.Index, count-1, count-1)
	if !ok {
		return NewUserError("filter index %d out of range [0, %d]", cmd.Index, count-1)
	}
	t.Apply(func(st *State) {
		items := st.FilterContext.Filters
		pos := st.FilterContext.filterItemIndex(from)
		moved := items[pos]
		items = append(items[:pos], items[pos+1:]...)
		st.FilterContext.Filters = items
		target := st.FilterContext.filterItemIndex(to)
		items = append(items, FilterContextItem{})
		copy(items[target+1:], items[target:])
		items[target] = moved
		st.FilterContext.Filters = items
	})
	t.Emit(&AttributeFilterMoved{Filter: filter.Clone(), FromIndex: from, ToIndex: to}, filterContextChanged(t))
	return nil
}

func changeAttributeFilterSelection(t *Turn, cmd ChangeAttributeFilterSelection) error {
	filter, _, ok := t.state().FilterContext.AttributeFilter(cmd.FilterLocalIdentifier)
	if !ok {
		return unknownFilter(cmd.FilterLocalIdentifier)
	}
	negative := cmd.SelectionType == SelectionNotIn
	if filter.SelectionMode == SelectionSingle {
		if negative || len(cmd.Elements.URIs)+len(cmd.Elements.Values) > 1 {
			return NewUserError("attribute filter %q allows a single selected element", filter.LocalIdentifier)
		}
	}
	if len(cmd.Elements.URIs) > 0 && len(cmd.Elements.Values) > 0 {
		return NewUserError("elements select either by uri or by value")
	}
	elements := cmd.Elements.Clone()
	t.Apply(func(st *State) {
		target := st.FilterContext.attributeFilterPtr(cmd.FilterLocalIdentifier)
		target.Negative = negative
		target.Elements = elements
	})
	updated, _, _ := t.state().FilterContext.AttributeFilter(cmd.FilterLocalIdentifier)
	t.Emit(&AttributeFilterSelectionChanged{Filter: updated.Clone()}, filterContextChanged(t))
	return nil
}

func setAttributeFilterParents(t *Turn, cmd SetAttributeFilterParents) error {
	fc := t.state().FilterContext
	if _, _, ok := fc.AttributeFilter(cmd.FilterLocalIdentifier); !ok {
		return unknownFilter(cmd.FilterLocalIdentifier)
	}
	if err := validateParents(fc, cmd.FilterLocalIdentifier, cmd.ParentFilters); err != nil {
		return err
	}
	parents := cloneParents(cmd.ParentFilters)
	t.Apply(func(st *State) {
		st.FilterContext.attributeFilterPtr(cmd.FilterLocalIdentifier).FilterElementsBy = parents
	})
	updated, _, _ := t.state().FilterContext.AttributeFilter(cmd.FilterLocalIdentifier)
	t.Emit(&AttributeFilterParentChanged{Filter: updated.Clone()}, filterContextChanged(t))
	return nil
}

func validateDateRange(filter DateFilter) error {
	switch filter.Type {
	case DateFilterRelative:
		if filter.From == "" && filter.To == "" {
			return nil
		}
		if filter.Granularity == "" {
			return NewUserError("relative date filters need a granularity")
		}
		from, err := strconv.Atoi(filter.From)
		if err != nil {
			return NewUserError("relative date filter from %q is not an offset", filter.From)
		}
		to, err := strconv.Atoi(filter.To)
		if err != nil {
			return NewUserError("relative date filter to %q is not an offset", filter.To)
		}
		if from > to {
			return NewUserError("relative date filter from %d is after to %d", from, to)
		}
	case DateFilterAbsolute:
		from, err := time.Parse(absoluteDateLayout, filter.From)
		if err != nil {
			return NewUserError("absolute date filter from %q is not a date", filter.From)
		}
		to, err := time.Parse(absoluteDateLayout, filter.To)
		if err != nil {
			return NewUserError("absolute date filter to %q is not a date", filter.To)
		}
		if from.After(to) {
			return NewUserError("absolute date filter from %s is after to %s", filter.From, filter.To)
		}
	default:
		return NewUserError("unknown date filter type %q", filter.Type)
	}
	return nil
}

func setDateFilter(t *Turn, filter DateFilter) {
	t.Apply(func(st *State) {
		stored := filter.Clone()
		for i := range st.FilterContext.Filters {
			if st.FilterContext.Filters[i].DateFilter != nil {
				st.FilterContext.Filters[i].DateFilter = &stored
				return
			}
		}
		st.FilterContext.Filters = append([]FilterContextItem{{DateFilter: &stored}}, st.FilterContext.Filters...)
	})
	t.Emit(&DateFilterSelectionChanged{Filter: filter}, filterContextChanged(t))
}

func changeDateFilterSelection(t *Turn, cmd ChangeDateFilterSelection) error {
	filter := DateFilter{
		Type:        cmd.Type,
		Granularity: strings.TrimSpace(cmd.Granularity),
		From:        strings.TrimSpace(cmd.From),
		To:          strings.TrimSpace(cmd.To),
		DataSet:     cloneRefPtr(cmd.DataSet),
	}
	if err := validateDateRange(filter); err != nil {
		return err
	}
	setDateFilter(t, filter)
	return nil
}

func clearDateFilterSelection(t *Turn, _ ClearDateFilterSelection) error {
	setDateFilter(t, DateFilter{Type: DateFilterRelative, Granularity: AllTimeGranularity})
	return nil
}
