package previewproto

import (
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"voxelkit.ai/internal/volume"
)

func TestSegments_RoundTripRebuildsVolume(t *testing.T) {
	v, err := volume.New(volume.Extent{X: 40, Y: 4, Z: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i, c := range []volume.Coord{{X: 0}, {X: 39, Y: 3, Z: 1}, {X: 5, Y: 2}, {X: 6, Y: 2}} {
		if err := v.Insert(c, volume.MaterialRef(200+i)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	in := v.Segments()
	out, err := DecodeSegments(EncodeSegments(in))
	if err != nil {
		t.Fatalf("DecodeSegments: %v", err)
	}
	if !slices.Equal(in, out) {
		t.Fatalf("layout mismatch:\n got %v\nwant %v", out, in)
	}
	back, err := volume.FromSegments(v.Extent(), mgl32.Ident4(), out)
	if err != nil {
		t.Fatalf("FromSegments: %v", err)
	}
	if back.Digest() != v.Digest() {
		t.Fatalf("rebuilt volume differs")
	}
}

func TestDecodeSegments_RejectsGarbage(t *testing.T) {
	for _, s := range []string{"!!!", "gA==", "AYAC"} {
		if _, err := DecodeSegments(s); err == nil {
			t.Fatalf("expected error for %q", s)
		}
	}
}
