// Package layout derives the rendered grid of a dashboard layout for a
// screen breakpoint. Every function here is pure.
package layout

import (
	"errors"
	"fmt"
	"math"

	"github.com/goliatone/go-dashboard-model/components/dashboard"
)

// Screen names a responsive breakpoint.
type Screen string

const (
	ScreenXS Screen = "xs"
	ScreenSM Screen = "sm"
	ScreenMD Screen = "md"
	ScreenLG Screen = "lg"
	ScreenXL Screen = "xl"
)

// Screens lists the breakpoints from narrowest to widest.
var Screens = []Screen{ScreenXS, ScreenSM, ScreenMD, ScreenLG, ScreenXL}

// RowHeightPx is the pixel height of one grid row.
const RowHeightPx = 20

// DefaultGridHeight applies to items that author neither a grid height nor a ratio.
const DefaultGridHeight = 12

// ErrUnsupportedWidth reports a grid width outside 0..12.
var ErrUnsupportedWidth = errors.New("layout: unsupported grid width")

var containerWidths = map[Screen]int{
	ScreenXL: 1400,
	ScreenLG: 1170,
	ScreenMD: 970,
	ScreenSM: 750,
	ScreenXS: 540,
}

// viewport breakpoints, widest first
var screenBreakpoints = []struct {
	min    int
	screen Screen
}{
	{1440, ScreenXL},
	{1200, ScreenLG},
	{992, ScreenMD},
	{768, ScreenSM},
}

// ParseScreen validates a screen name.
func ParseScreen(value string) (Screen, error) {
	screen := Screen(value)
	if _, ok := containerWidths[screen]; !ok {
		return "", fmt.Errorf("layout: unknown screen %q", value)
	}
	return screen, nil
}

// ScreenForWidth maps a viewport width in pixels to its breakpoint.
func ScreenForWidth(px int) Screen {
	for _, bp := range screenBreakpoints {
		if px >= bp.min {
			return bp.screen
		}
	}
	return ScreenXS
}

// ContainerWidth returns the pixel width of the grid container on screen.
func ContainerWidth(screen Screen) int {
	if width, ok := containerWidths[screen]; ok {
		return width
	}
	return containerWidths[ScreenXL]
}

// implicit widths ordered xl, lg, md, sm, xs
func implicitWidths(width int) ([5]int, error) {
	switch {
	case width == 0:
		return [5]int{}, nil
	case width == 1:
		return [5]int{1, 1, 2, 6, 12}, nil
	case width == 2:
		return [5]int{2, 2, 4, 6, 12}, nil
	case width >= 3 && width <= 9:
		return [5]int{width, width, 6, 12, 12}, nil
	case width == 10:
		return [5]int{10, 10, 12, 12, 12}, nil
	case width == 11:
		return [5]int{11, 11, 12, 12, 12}, nil
	case width == dashboard.GridColumns:
		return [5]int{12, 12, 12, 12, 12}, nil
	}
	return [5]int{}, fmt.Errorf("%w: %d", ErrUnsupportedWidth, width)
}

// ImplicitSize expands the authored xl size into a size for every
// breakpoint. Heights and ratios are carried over unchanged.
func ImplicitSize(xl dashboard.SizeInfo) (dashboard.ItemSize, error) {
	widths, err := implicitWidths(xl.GridWidth)
	if err != nil {
		return dashboard.ItemSize{}, err
	}
	at := func(width int) *dashboard.SizeInfo {
		size := xl
		size.GridWidth = width
		return &size
	}
	out := dashboard.ItemSize{XL: xl}
	out.LG = at(widths[1])
	out.MD = at(widths[2])
	out.SM = at(widths[3])
	out.XS = at(widths[4])
	return out, nil
}

// SizeForScreen returns the size item renders with on screen. An explicit
// size authored for that screen wins over the implicit one.
func SizeForScreen(item dashboard.Item, screen Screen) (dashboard.SizeInfo, error) {
	if explicit := explicitSize(item.Size, screen); explicit != nil {
		if explicit.GridWidth < 0 || explicit.GridWidth > dashboard.GridColumns {
			return dashboard.SizeInfo{}, fmt.Errorf("%w: %d", ErrUnsupportedWidth, explicit.GridWidth)
		}
		return *explicit, nil
	}
	implicit, err := ImplicitSize(item.Size.XL)
	if err != nil {
		return dashboard.SizeInfo{}, err
	}
	return *explicitSize(implicit, screen), nil
}

func explicitSize(size dashboard.ItemSize, screen Screen) *dashboard.SizeInfo {
	switch screen {
	case ScreenXL:
		xl := size.XL
		return &xl
	case ScreenLG:
		return size.LG
	case ScreenMD:
		return size.MD
	case ScreenSM:
		return size.SM
	case ScreenXS:
		return size.XS
	}
	return nil
}

// GridHeight converts size into grid rows. Ratio heights are measured
// against the cell's pixel width inside the screen's container.
func GridHeight(size dashboard.SizeInfo, screen Screen) int {
	if size.GridHeight > 0 {
		return size.GridHeight
	}
	if size.HeightAsRatio > 0 {
		cellPx := float64(ContainerWidth(screen)) * float64(size.GridWidth) / float64(dashboard.GridColumns)
		return int(math.Ceil(cellPx * size.HeightAsRatio / 100 / RowHeightPx))
	}
	return DefaultGridHeight
}
