package main

import (
	"bytes"
	"encoding/binary"
	"image"
	"strings"
	"testing"

	"github.com/nbarena/gmpatch/archive"
	"github.com/nbarena/gmpatch/archive/archivetest"
)

func sample() ([]byte, *archivetest.Layout) {
	b := &archivetest.Builder{
		Sprites: []archivetest.Sprite{
			{Name: "spr_a", Frames: []archivetest.Frame{{X: 0, Y: 0, Width: 4, Height: 4, Page: 0}}},
			{Name: "spr_b", Frames: []archivetest.Frame{{X: 4, Y: 0, Width: 4, Height: 4, Page: 0}}},
		},
		Pages:   []image.Image{archivetest.SolidPage(8, 8, [4]uint8{1, 2, 3, 255})},
		Strings: []string{"first line\nsecond line"},
	}
	return b.Build()
}

func TestPrintTree(t *testing.T) {
	data, _ := sample()
	a, err := archive.Open(data)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	bad, err := printTree(&out, a)
	if err != nil {
		t.Fatalf("printTree: %v", err)
	}
	if bad != 0 {
		t.Errorf("intact archive has %d bad frames", bad)
	}
	for _, want := range []string{" FORM ", " STRG ", " TPAG ", " SPRT ", " TXTR ", " PNG ", "spr_b", "first line…", "8x8"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output lacks %q:\n%s", want, out.String())
		}
	}
}

func TestPrintTreeFlagsUnlistedFrame(t *testing.T) {
	data, l := sample()
	binary.LittleEndian.PutUint32(data[l.SpriteRecords[1]+80:], uint32(l.FrameRecords[0][0]+4))
	a, err := archive.Open(data)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	bad, err := printTree(&out, a)
	if err != nil {
		t.Fatalf("printTree: %v", err)
	}
	if bad != 1 {
		t.Errorf("bad frames = %d, want 1", bad)
	}
}
