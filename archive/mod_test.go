package archive_test

import (
	"encoding/binary"
	"image"
	"reflect"
	"testing"

	"github.com/nbarena/gmpatch/archive"
	"github.com/nbarena/gmpatch/archive/archivetest"
)

func sampleArchive(t *testing.T) ([]byte, *archivetest.Layout) {
	t.Helper()
	b := &archivetest.Builder{
		Extra: []archivetest.RawChunk{
			{Tag: "GEN8", Payload: make([]byte, 16)},
		},
		Sprites: []archivetest.Sprite{
			{Name: "spr_a", Frames: []archivetest.Frame{{X: 0, Y: 0, Width: 4, Height: 4, Page: 0}}},
		},
		Pages:   []image.Image{archivetest.SolidPage(8, 8, [4]uint8{10, 20, 30, 255})},
		Strings: []string{"hello", "world\x00\x00"},
	}
	return b.Build()
}

func TestOpen(t *testing.T) {
	data, _ := sampleArchive(t)

	a, err := archive.Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := a.Root().Size(); got != int64(len(data)) {
		t.Errorf("root size = %d, want %d", got, len(data))
	}

	sections, err := a.Sections()
	if err != nil {
		t.Fatalf("Sections: %v", err)
	}
	var tags []string
	for _, c := range sections {
		tags = append(tags, c.Tag.String())
	}
	want := []string{"GEN8", "STRG", "TPAG", "SPRT", "TXTR"}
	if len(tags) != len(want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Errorf("tag %d = %s, want %s", i, tags[i], want[i])
		}
	}
}

func TestOpenRejectsBadRoot(t *testing.T) {
	data, _ := sampleArchive(t)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		kind   archive.FormatErrorKind
	}{
		{"bad magic", func(b []byte) []byte { b[0] = 'X'; return b }, archive.BadMagic},
		{"trailing bytes", func(b []byte) []byte { return append(b, 0, 0, 0, 0) }, archive.SizeUnderflow},
		{"truncated", func(b []byte) []byte { return b[:len(b)-1] }, archive.SizeOverflow},
		{"header only", func(b []byte) []byte { return b[:4] }, archive.Truncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := append([]byte(nil), data...)
			_, err := archive.Open(tt.mutate(b))
			if !archive.IsFormatError(err, tt.kind) {
				t.Fatalf("Open error = %v, want %s", err, tt.kind)
			}
		})
	}
}

func TestChunkOverflowsRegion(t *testing.T) {
	data, _ := sampleArchive(t)
	b := append([]byte(nil), data...)
	// GEN8 is the first section; claim more payload than FORM holds.
	binary.LittleEndian.PutUint32(b[12:], uint32(len(b)))

	a, err := archive.Open(b)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := a.Sections(); !archive.IsFormatError(err, archive.OutOfRange) {
		t.Fatalf("Sections error = %v, want out of range", err)
	}
}

func TestReadAtBounds(t *testing.T) {
	data, _ := sampleArchive(t)
	a, err := archive.Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := a.ReadAt(a.Len()-4, 4); err != nil {
		t.Errorf("ReadAt last word: %v", err)
	}
	if _, err := a.ReadAt(a.Len()-3, 4); !archive.IsFormatError(err, archive.OutOfRange) {
		t.Errorf("ReadAt past end error = %v", err)
	}
	if _, err := a.ReadAt(-1, 1); !archive.IsFormatError(err, archive.OutOfRange) {
		t.Errorf("ReadAt negative error = %v", err)
	}
}

func TestStrings(t *testing.T) {
	data, l := sampleArchive(t)
	a, err := archive.Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	strs, err := a.Strings()
	if err != nil {
		t.Fatalf("Strings: %v", err)
	}
	if len(strs) != 3 {
		t.Fatalf("got %d strings, want 3", len(strs))
	}
	if strs[2].Text != "world" {
		t.Errorf("NUL padding not stripped: %q", strs[2].Text)
	}

	s, err := a.StringAt(l.NamePointers["spr_a"])
	if err != nil {
		t.Fatalf("StringAt: %v", err)
	}
	if s != "spr_a" {
		t.Errorf("StringAt = %q, want spr_a", s)
	}
	if _, err := a.StringAt(2); !archive.IsFormatError(err, archive.OutOfRange) {
		t.Errorf("StringAt(2) error = %v", err)
	}
}

func TestTextures(t *testing.T) {
	data, l := sampleArchive(t)
	a, err := archive.Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	txtrs, err := a.Textures()
	if err != nil {
		t.Fatalf("Textures: %v", err)
	}
	if len(txtrs) != 1 {
		t.Fatalf("got %d textures, want 1", len(txtrs))
	}
	e := txtrs[0]
	if e.Width != 8 || e.Height != 8 {
		t.Errorf("size = %dx%d, want 8x8", e.Width, e.Height)
	}
	if e.ImageOffset != l.PageImages[0] || e.ImageSize != int64(len(l.PagePNGs[0])) {
		t.Errorf("image at %d+%d, want %d+%d", e.ImageOffset, e.ImageSize, l.PageImages[0], len(l.PagePNGs[0]))
	}
}

func TestTextureImageOutsideSection(t *testing.T) {
	data, l := sampleArchive(t)
	b := append([]byte(nil), data...)
	info := l.TextureSection + 8
	binary.LittleEndian.PutUint32(b[info+8:], uint32(len(b)+16))

	a, err := archive.Open(b)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := a.Textures(); !archive.IsFormatError(err, archive.OutOfRange) {
		t.Fatalf("Textures error = %v, want out of range", err)
	}
}

func TestWalk(t *testing.T) {
	nested := &archivetest.Builder{}
	inner, _ := nested.Build()

	b := &archivetest.Builder{
		// A container whose payload is a FORM with empty tables.
		Extra: []archivetest.RawChunk{{Tag: "EXTN", Payload: inner}},
	}
	data, _ := b.Build()
	a, err := archive.Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	depths := map[string]int{}
	count := 0
	err = a.Walk(func(depth int, c archive.Chunk, s archive.Section) error {
		count++
		if _, seen := depths[c.Tag.String()]; !seen {
			depths[c.Tag.String()] = depth
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if depths["EXTN"] != 1 {
		t.Errorf("EXTN depth = %d, want 1", depths["EXTN"])
	}
	// FORM, EXTN, nested FORM + 4 tables, outer 4 tables.
	if count != 11 {
		t.Errorf("visited %d chunks, want 11", count)
	}
}

func TestScanStringRefs(t *testing.T) {
	data, l := sampleArchive(t)
	a, err := archive.Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	refs, err := a.ScanStringRefs()
	if err != nil {
		t.Fatalf("ScanStringRefs: %v", err)
	}
	found := false
	for _, r := range refs {
		if r.Section == archive.TagSprites && r.Pointer == l.NamePointers["spr_a"] && r.Text == "spr_a" {
			found = true
		}
	}
	if !found {
		t.Errorf("sprite name reference not found in %v", refs)
	}
}

type le []byte

func (b *le) u32(vs ...uint32) {
	for _, v := range vs {
		*b = binary.LittleEndian.AppendUint32(*b, v)
	}
}

// tablesArchive returns an archive with GEN8, BGND, AUDO and OBJT sections
// referring to the strings of its string table.
func tablesArchive(t *testing.T) []byte {
	t.Helper()
	strs := []string{"Game", "Display", "bg_sky", "bg_sea"}

	build := func(ptr map[string]uint32) ([]byte, *archivetest.Layout) {
		// Extra chunks come first, so the GEN8 payload starts right after
		// the FORM and GEN8 headers.
		const gen8 = 16
		fields := make([]uint32, 26)
		fields[0] = 7
		fields[1] = ptr["Game"]
		fields[2] = ptr["Display"]
		fields[25] = ptr["bg_sky"]
		var g le
		g.u32(fields...)

		bgnd := gen8 + uint32(len(g)) + 8
		var bg le
		bg.u32(2, bgnd+12, bgnd+32)
		bg.u32(ptr["bg_sky"], 1, 2, 3, 4)
		bg.u32(ptr["bg_sea"], 5, 6, 7, 8)

		audo := bgnd + uint32(len(bg)) + 8
		var au le
		au.u32(2, audo+12, audo+24)
		au.u32(8)
		au = append(au, "RIFFdata"...)
		au.u32(2)
		au = append(au, "Og"...)

		objt := audo + uint32(len(au)) + 8
		var ob le
		ob.u32(3, objt+16, objt+26, objt+46)
		ob = append(ob, make([]byte, 40)...)

		b := &archivetest.Builder{
			Extra: []archivetest.RawChunk{
				{Tag: "GEN8", Payload: g},
				{Tag: "BGND", Payload: bg},
				{Tag: "AUDO", Payload: au},
				{Tag: "OBJT", Payload: ob},
			},
			Strings: strs,
		}
		return b.Build()
	}

	// Pointers do not change the layout, so a first pass finds them.
	_, l := build(map[string]uint32{})
	ptrs := map[string]uint32{}
	for i, s := range strs {
		ptrs[s] = l.StringPointers[i]
	}
	data, _ := build(ptrs)
	return data
}

func section(t *testing.T, a *archive.Archive, tag archive.Tag) archive.Section {
	t.Helper()
	cs, err := a.SectionsByTag(tag)
	if err != nil || len(cs) != 1 {
		t.Fatalf("%s sections = %v, %v", tag, cs, err)
	}
	s, err := a.ParseSection(cs[0])
	if err != nil {
		t.Fatalf("ParseSection(%s): %v", tag, err)
	}
	return s
}

func TestGeneral(t *testing.T) {
	a, err := archive.Open(tablesArchive(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	g, ok := section(t, a, archive.TagGeneral).(*archive.General)
	if !ok {
		t.Fatalf("GEN8 is not a *General")
	}
	if len(g.Fields) != 26 || g.Fields[0] != 7 {
		t.Errorf("fields = %v", g.Fields)
	}
	want := map[int]string{1: "Game", 2: "Display", 25: "bg_sky"}
	if !reflect.DeepEqual(g.Names, want) {
		t.Errorf("names = %v, want %v", g.Names, want)
	}
}

func TestBackgroundTable(t *testing.T) {
	a, err := archive.Open(tablesArchive(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	bg := section(t, a, archive.TagBackgrounds).(*archive.BackgroundTable)
	if len(bg.Entries) != 2 {
		t.Fatalf("got %d backgrounds", len(bg.Entries))
	}
	for i, want := range []struct {
		name  string
		first uint32
	}{{"bg_sky", 1}, {"bg_sea", 5}} {
		e := bg.Entries[i]
		if e.Name != want.name || e.Fields[1] != want.first || e.Size != 20 {
			t.Errorf("background %d = %+v", i, e)
		}
	}
}

func TestAudioTable(t *testing.T) {
	data := tablesArchive(t)
	a, err := archive.Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	au := section(t, a, archive.TagAudio).(*archive.AudioTable)
	base := au.Chunk().PayloadOffset
	want := []archive.AudioEntry{
		{Offset: base + 16, Size: 8, Magic: "RIFF"},
		{Offset: base + 28, Size: 2, Magic: "Og"},
	}
	if !reflect.DeepEqual(au.Entries, want) {
		t.Errorf("entries = %+v, want %+v", au.Entries, want)
	}

	binary.LittleEndian.PutUint32(data[base+12:], 1000)
	a, err = archive.Open(data)
	if err != nil {
		t.Fatal(err)
	}
	cs, _ := a.SectionsByTag(archive.TagAudio)
	if _, err := a.ParseSection(cs[0]); !archive.IsFormatError(err, archive.OutOfRange) {
		t.Errorf("oversized sound error = %v", err)
	}
}

func TestObjectTable(t *testing.T) {
	a, err := archive.Open(tablesArchive(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ob := section(t, a, archive.TagObjects).(*archive.ObjectTable)
	var sizes []int64
	for _, e := range ob.Entries {
		sizes = append(sizes, e.Size)
	}
	if !reflect.DeepEqual(sizes, []int64{10, 20, 10}) {
		t.Errorf("sizes = %v", sizes)
	}
}

func TestPageTable(t *testing.T) {
	data, l := sampleArchive(t)
	a, err := archive.Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	pt := section(t, a, archive.TagPages).(*archive.PageTable)
	if len(pt.Entries) != 1 {
		t.Fatalf("got %d page records", len(pt.Entries))
	}
	e := pt.Entries[0]
	if e.Offset != l.FrameRecords[0][0] || e.Fields[2] != 4 || e.Fields[3] != 4 || e.Fields[10] != 0 {
		t.Errorf("record = %+v", e)
	}
	if !pt.Lists(e.Offset) || pt.Lists(e.Offset+2) {
		t.Errorf("Lists is wrong around %d", e.Offset)
	}
}

func TestStringPreview(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"short", "short"},
		{"first\nsecond", "first…"},
		{"abcdefgh", "abcde…"},
		{"äöüßéèêë", "äöüßé…"},
		{"abcde", "abcde"},
	}
	for _, tt := range tests {
		if got := (archive.StringEntry{Text: tt.text}).Preview(5); got != tt.want {
			t.Errorf("Preview(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}
