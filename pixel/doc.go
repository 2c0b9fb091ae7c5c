// Package pixel implements the packed 16-bit color and image types used by the frame buffer
// and the TFT panel drivers.
//
// The types are compatible with Go's native [color.Color] and [image.Image] / [draw.Image]
// interfaces, so any image can be converted to the panel's native 5-6-5 RGB format.
package pixel
