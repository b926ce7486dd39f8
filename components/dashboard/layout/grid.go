package layout

import (
	"fmt"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
)

// Cell is one item as rendered in a row.
type Cell struct {
	SectionIndex int                `json:"sectionIndex"`
	ItemIndex    int                `json:"itemIndex"`
	Widget       dashboard.Widget   `json:"widget"`
	Size         dashboard.SizeInfo `json:"size"`
	// Column is the zero based offset of the cell inside its row.
	Column int `json:"column"`
	// Height is the cell height in grid rows after row unification.
	Height int `json:"height"`
}

// Row is a run of cells that fits in the column budget.
type Row struct {
	Screen Screen `json:"screen"`
	Cells  []Cell `json:"cells"`
	Height int    `json:"height"`
}

// Width sums the cell widths.
func (r Row) Width() int {
	total := 0
	for _, cell := range r.Cells {
		total += cell.Size.GridWidth
	}
	return total
}

// HeightPx is the rendered row height in pixels.
func (r Row) HeightPx() int { return r.Height * RowHeightPx }

// GridSection is a layout section split into rows.
type GridSection struct {
	Index  int                     `json:"index"`
	Header dashboard.SectionHeader `json:"header"`
	Rows   []Row                   `json:"rows"`
}

// Grid is a layout rendered for one screen.
type Grid struct {
	Screen         Screen        `json:"screen"`
	ContainerWidth int           `json:"containerWidth"`
	Sections       []GridSection `json:"sections"`
}

// SplitRows packs items into rows greedily. A new row starts when the
// running width plus the next item's width would exceed the column count.
// Cell heights are the per-item heights; call UnifyHeights to level them.
func SplitRows(items []dashboard.Item, screen Screen) ([]Row, error) {
	var rows []Row
	current := Row{Screen: screen}
	running := 0
	for idx, item := range items {
		size, err := SizeForScreen(item, screen)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", idx, err)
		}
		if len(current.Cells) > 0 && running+size.GridWidth > dashboard.GridColumns {
			rows = append(rows, current)
			current = Row{Screen: screen}
			running = 0
		}
		current.Cells = append(current.Cells, Cell{
			ItemIndex: idx,
			Widget:    item.Widget,
			Size:      size,
			Column:    running,
			Height:    GridHeight(size, screen),
		})
		running += size.GridWidth
	}
	if len(current.Cells) > 0 {
		rows = append(rows, current)
	}
	return rows, nil
}

// UnifyHeights gives every cell of a row the tallest cell's height. The
// input rows are not modified.
func UnifyHeights(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, row := range rows {
		tallest := 0
		for _, cell := range row.Cells {
			tallest = max(tallest, GridHeight(cell.Size, row.Screen))
		}
		cells := make([]Cell, len(row.Cells))
		for j, cell := range row.Cells {
			cell.Height = tallest
			cells[j] = cell
		}
		out[i] = Row{Screen: row.Screen, Cells: cells, Height: tallest}
	}
	return out
}

// Build renders every section of l for screen.
func Build(l dashboard.Layout, screen Screen) (Grid, error) {
	grid := Grid{Screen: screen, ContainerWidth: ContainerWidth(screen)}
	for sectionIndex, section := range l.Sections {
		rows, err := SplitRows(section.Items, screen)
		if err != nil {
			return Grid{}, fmt.Errorf("section %d: %w", sectionIndex, err)
		}
		rows = UnifyHeights(rows)
		for r := range rows {
			for c := range rows[r].Cells {
				rows[r].Cells[c].SectionIndex = sectionIndex
			}
		}
		grid.Sections = append(grid.Sections, GridSection{
			Index:  sectionIndex,
			Header: section.Header,
			Rows:   rows,
		})
	}
	return grid, nil
}
