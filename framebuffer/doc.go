// Package framebuffer holds the in-memory copy of the panel contents and the dirty
// rectangle describing what changed since the last flush.
//
// A FrameBuffer is created once with the panel geometry and never resized. It is not safe
// for concurrent use: the frame scheduler is its only owner.
package framebuffer
