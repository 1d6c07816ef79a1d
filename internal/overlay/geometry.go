package overlay

// Rect is an axis-aligned box in viewport coordinates.
type Rect struct {
	Left, Top, Right, Bottom int
}

// Width returns the horizontal extent.
func (r Rect) Width() int { return r.Right - r.Left }

// Height returns the vertical extent.
func (r Rect) Height() int { return r.Bottom - r.Top }

// Size is a width and height, in pixels for browsers or cells for terminals.
type Size struct {
	W, H int
}

// Position is where the overlay's top-left corner sits in the viewport.
type Position struct {
	Top, Left int
}

// RangeSource reports where the current selection is drawn. The second
// result is false once the range is no longer live: deselected, scrolled
// out of the document, or the document replaced.
type RangeSource interface {
	Rect() (Rect, bool)
}

// FixedRange is a RangeSource that is always live at the same place.
type FixedRange Rect

// Rect implements RangeSource.
func (f FixedRange) Rect() (Rect, bool) { return Rect(f), true }

const (
	// SelectionGap separates the overlay from the selection it annotates.
	SelectionGap = 10
	// FallbackTop and FallbackMargin place the overlay when there is no
	// live selection: near the top, against the right edge.
	FallbackTop    = 20
	FallbackMargin = 20
)

// Place positions an overlay of size next to sel inside the viewport. The
// overlay goes below the selection, flips above it when it would overflow
// the bottom edge, and is clamped to the viewport on both axes.
func Place(sel Rect, size, viewport Size) Position {
	top := sel.Bottom + SelectionGap
	if top+size.H > viewport.H {
		top = sel.Top - size.H - SelectionGap
	}
	return Position{
		Top:  clamp(top, 0, viewport.H-size.H),
		Left: clamp(sel.Left, 0, viewport.W-size.W),
	}
}

// Fallback positions the overlay when the selection range is gone.
func Fallback(size, viewport Size) Position {
	return Position{
		Top:  clamp(FallbackTop, 0, viewport.H-size.H),
		Left: clamp(viewport.W-size.W-FallbackMargin, 0, viewport.W-size.W),
	}
}

// Fits reports whether an overlay of size at pos lies inside the viewport.
func Fits(pos Position, size, viewport Size) bool {
	return pos.Top >= 0 && pos.Left >= 0 &&
		pos.Top+size.H <= viewport.H && pos.Left+size.W <= viewport.W
}

// clamp bounds v to [lo, hi]; lo wins when the range is empty, so an
// overlay larger than the viewport is pinned to the top-left edge.
func clamp(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
