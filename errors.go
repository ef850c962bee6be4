package anim

import "github.com/gogpu/anim/internal/source"

// Construction errors returned by Decode. Match with errors.Is.
var (
	// ErrNotDecodable reports that the input is not a decodable image
	// container at all.
	ErrNotDecodable = source.ErrNotDecodable

	// ErrSingleFrame reports a valid image with exactly one frame.
	// Callers should fall back to static-image handling.
	ErrSingleFrame = source.ErrSingleFrame

	// ErrUnsupportedContainer reports an image that decodes but is not an
	// animatable container type.
	ErrUnsupportedContainer = source.ErrUnsupportedContainer
)
