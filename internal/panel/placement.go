package panel

// Size is a width and height in host units.
type Size struct {
	W, H int
}

// Rect is a placed rectangle in host coordinates.
type Rect struct {
	X, Y, W, H int
}

// DefaultSize is the panel size used when none is configured.
var DefaultSize = Size{W: 400, H: 560}

// Panel offset from the host's top-right corner.
const (
	offsetRight = 12
	offsetTop   = 22
)

// Placement docks a panel of the wanted size to the host's top-right corner,
// shrinking it to fit hosts too small to hold it.
func Placement(host, want Size) Rect {
	if want.W <= 0 || want.H <= 0 {
		want = DefaultSize
	}
	w := min(want.W, max(host.W-offsetRight, 0))
	h := min(want.H, max(host.H-offsetTop, 0))
	return Rect{
		X: max(host.W-offsetRight-w, 0),
		Y: offsetTop,
		W: w,
		H: h,
	}
}
