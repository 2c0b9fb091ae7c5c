package framebuffer

import "image"

// DirtyRect is the bounding box of the pixels changed since the last flush. It only ever
// grows until Reset and never extends past the frame bounds it was created for.
type DirtyRect struct {
	bounds image.Rectangle
	rect   image.Rectangle
}

// NewDirtyRect returns an empty dirty rectangle clipped to bounds.
func NewDirtyRect(bounds image.Rectangle) *DirtyRect {
	return &DirtyRect{bounds: bounds}
}

// Add grows the rectangle to include the pixel at p.
func (d *DirtyRect) Add(p image.Point) {
	d.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
}

// Union grows the rectangle to include r.
func (d *DirtyRect) Union(r image.Rectangle) {
	r = r.Intersect(d.bounds)
	if r.Empty() {
		return
	}
	d.rect = d.rect.Union(r)
}

// Full marks the whole frame as dirty.
func (d *DirtyRect) Full() {
	d.rect = d.bounds
}

// Rect returns the current bounding box; the zero rectangle when nothing is dirty.
func (d *DirtyRect) Rect() image.Rectangle {
	return d.rect
}

// Empty reports whether nothing changed since the last Reset.
func (d *DirtyRect) Empty() bool {
	return d.rect.Empty()
}

// Reset empties the rectangle, typically after a successful flush.
func (d *DirtyRect) Reset() {
	d.rect = image.Rectangle{}
}

func (d *DirtyRect) String() string {
	if d.Empty() {
		return "empty"
	}
	return d.rect.String()
}
