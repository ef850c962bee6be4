// Package source adapts a decoded animated GIF container into a random-access
// frame source.
//
// The GIF format is inherently sequential: frame i is defined relative to the
// canvas state left behind by frames 0..i-1 and their disposal methods. The
// Source hides that by keeping a persistent composition canvas plus a small
// LRU of recently composed frames, so that re-requesting a recently evicted
// index costs O(1) instead of a re-composition from frame 0.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	// Registered so that valid single-image containers classify as
	// unsupported rather than undecodable.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Construction and per-frame errors.
var (
	// ErrNotDecodable is returned when the input bytes are not decodable
	// as any known image container.
	ErrNotDecodable = errors.New("anim: data is not a decodable image")

	// ErrSingleFrame is returned for a valid image with exactly one frame.
	// Callers should fall back to static-image handling.
	ErrSingleFrame = errors.New("anim: image has a single frame")

	// ErrUnsupportedContainer is returned when the input decodes as an
	// image but not as an animatable container.
	ErrUnsupportedContainer = errors.New("anim: container is not animatable")

	// ErrFrameCorrupt is returned when a frame exists in the container but
	// yields no usable bitmap.
	ErrFrameCorrupt = errors.New("anim: frame is corrupt")
)

// composedCacheSize is the number of fully composed canvases retained beyond
// the caller's own frame cache. A handful is enough to make backward seeks
// over a recently played region O(1).
const composedCacheSize = 4

// Source provides random access to the composed frames of an animated GIF.
//
// Source is safe for concurrent use. Composition is serialized internally;
// only one frame is composed at a time.
type Source struct {
	g      *gif.GIF
	width  int
	height int
	delays []time.Duration
	total  time.Duration

	mu       sync.Mutex
	canvas   *image.NRGBA // Composition state after disposing frame next-1
	next     int          // Next index the canvas is positioned to compose
	composed *lru.Cache[int, *image.NRGBA]
}

// New validates data as an animated GIF container and returns a Source.
//
// Classification: bytes that do not decode at all yield ErrNotDecodable;
// bytes that decode as some other image format yield ErrUnsupportedContainer;
// a valid single-frame GIF yields ErrSingleFrame.
func New(data []byte) (*Source, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		// Not a GIF. A successful decode under any other registered
		// format means the image is valid but not animatable.
		if _, _, derr := image.Decode(bytes.NewReader(data)); derr == nil {
			return nil, fmt.Errorf("%w: not an animated GIF", ErrUnsupportedContainer)
		}
		return nil, fmt.Errorf("%w: %v", ErrNotDecodable, err)
	}

	switch len(g.Image) {
	case 0:
		return nil, fmt.Errorf("%w: container has no frames", ErrNotDecodable)
	case 1:
		return nil, ErrSingleFrame
	}

	width, height := g.Config.Width, g.Config.Height
	if width <= 0 || height <= 0 {
		b := g.Image[0].Bounds()
		width, height = b.Max.X, b.Max.Y
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: empty canvas", ErrNotDecodable)
	}

	delays := resolveDelays(g.Delay)
	var total time.Duration
	for _, d := range delays {
		total += d
	}

	composed, err := lru.New[int, *image.NRGBA](composedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("anim: composed cache: %w", err)
	}

	return &Source{
		g:        g,
		width:    width,
		height:   height,
		delays:   delays,
		total:    total,
		canvas:   image.NewNRGBA(image.Rect(0, 0, width, height)),
		composed: composed,
	}, nil
}

// FrameCount returns the number of frames in the container. Always >= 2.
func (s *Source) FrameCount() int { return len(s.g.Image) }

// Width returns the canvas width in pixels.
func (s *Source) Width() int { return s.width }

// Height returns the canvas height in pixels.
func (s *Source) Height() int { return s.height }

// LoopCount reports how often the animation repeats: 0 means forever,
// -1 means play once, n > 0 means repeat n additional times.
func (s *Source) LoopCount() int { return s.g.LoopCount }

// Delay returns the resolved display duration of frame index.
func (s *Source) Delay(index int) time.Duration {
	if index < 0 || index >= len(s.delays) {
		return 0
	}
	return s.delays[index]
}

// Delays returns the full resolved delay table, index-aligned with frames.
// The returned slice must not be modified.
func (s *Source) Delays() []time.Duration { return s.delays }

// TotalDuration returns the sum of all resolved frame delays.
func (s *Source) TotalDuration() time.Duration { return s.total }

// Compose returns the fully composed bitmap for frame index.
//
// The returned image is shared and must be treated as immutable.
func (s *Source) Compose(index int) (*image.NRGBA, error) {
	if index < 0 || index >= len(s.g.Image) {
		return nil, fmt.Errorf("anim: frame %d out of range [0, %d)", index, len(s.g.Image))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if img, ok := s.composed.Get(index); ok {
		return img, nil
	}

	// A backward seek past everything retained restarts composition from
	// the first frame. Forward seeks continue from the current canvas.
	if index < s.next {
		s.canvas = image.NewNRGBA(image.Rect(0, 0, s.width, s.height))
		s.next = 0
	}

	var out *image.NRGBA
	for s.next <= index {
		i := s.next
		img, err := s.composeNext()
		if err != nil {
			// A corrupt intermediate frame only degrades the canvas;
			// composition of later frames continues without it.
			if i == index {
				return nil, err
			}
			continue
		}
		out = img
	}
	return out, nil
}

// composeNext composes frame s.next onto the canvas, snapshots the result,
// applies the frame's disposal method, and advances. Caller must hold s.mu.
func (s *Source) composeNext() (*image.NRGBA, error) {
	i := s.next
	pal := s.g.Image[i]
	if pal == nil || pal.Bounds().Empty() {
		// Skip the slot but keep the canvas consistent so later frames
		// still compose. The caller decides whether to surface this.
		s.next++
		return nil, fmt.Errorf("%w: frame %d", ErrFrameCorrupt, i)
	}

	rect := pal.Bounds().Intersect(s.canvas.Bounds())

	var disposal byte
	if i < len(s.g.Disposal) {
		disposal = s.g.Disposal[i]
	}

	// DisposalPrevious needs the covered region restored afterwards.
	var saved *image.NRGBA
	if disposal == gif.DisposalPrevious {
		saved = image.NewNRGBA(rect)
		draw.Draw(saved, rect, s.canvas, rect.Min, draw.Src)
	}

	draw.Draw(s.canvas, rect, pal, rect.Min, draw.Over)

	snapshot := image.NewNRGBA(s.canvas.Bounds())
	copy(snapshot.Pix, s.canvas.Pix)
	s.composed.Add(i, snapshot)

	switch disposal {
	case gif.DisposalBackground:
		draw.Draw(s.canvas, rect, image.Transparent, image.Point{}, draw.Src)
	case gif.DisposalPrevious:
		draw.Draw(s.canvas, rect, saved, rect.Min, draw.Src)
	}

	s.next++
	return snapshot, nil
}
