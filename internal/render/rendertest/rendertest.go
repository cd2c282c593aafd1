// Package rendertest builds small in-memory projects for tests of the
// frame pipeline.
package rendertest

import (
	"fmt"
	"image"
	"image/color"

	"github.com/ivlev/screenreel/internal/project"
	"github.com/ivlev/screenreel/internal/source"
	"github.com/ivlev/screenreel/internal/timebase"
)

const (
	RecordingID = "rec"
	Width       = 160
	Height      = 90
	FPS         = 30
)

// Project returns two back-to-back clips of one 160x90 recording:
// [0, 1000) ms at normal speed from source 0-1000 ms, then [1000, 2000) ms
// at 1.2x from source 1000-2200 ms. At 30 fps that is 60 frames.
func Project() *project.Project {
	p := project.New("test")
	p.AddRecording(project.Recording{
		ID:            RecordingID,
		VideoSource:   "memory",
		CaptureWidth:  Width,
		CaptureHeight: Height,
		FPS:           FPS,
	})
	add(p, 0, 0, 1000, 1)
	add(p, 1000, 1000, 2200, 1.2)
	return p
}

// Clip returns a new clip of the test recording, panicking on bad input.
func Clip(start timebase.TimelineMs, in, out timebase.SourceMs, rate float64) project.Clip {
	c, err := project.NewClip(RecordingID, start, in, out, rate, 0)
	if err != nil {
		panic(fmt.Sprintf("rendertest: %v", err))
	}
	return c
}

func add(p *project.Project, start timebase.TimelineMs, in, out timebase.SourceMs, rate float64) {
	if err := p.AddClip(Clip(start, in, out, rate)); err != nil {
		panic(fmt.Sprintf("rendertest: %v", err))
	}
}

// Frames returns n solid frames. Frame i is colored (i mod 256, 0x80, 0x40)
// so the frame shown can be read back from any pixel.
func Frames(n, w, h int) []image.Image {
	frames := make([]image.Image, n)
	for i := range frames {
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		c := color.RGBA{R: uint8(i), G: 0x80, B: 0x40, A: 0xff}
		for p := 0; p < len(img.Pix); p += 4 {
			img.Pix[p], img.Pix[p+1], img.Pix[p+2], img.Pix[p+3] = c.R, c.G, c.B, c.A
		}
		frames[i] = img
	}
	return frames
}

// Source serves Frames(n, Width, Height) at the test recording's rate.
func Source(n int) *source.MemorySource {
	return &source.MemorySource{FPS: FPS, Frames: Frames(n, Width, Height)}
}

// Library serves src for every recording.
func Library(src source.FrameSource) *source.Library {
	return source.NewLibrary(func(project.Recording) (source.FrameSource, error) {
		return src, nil
	})
}
