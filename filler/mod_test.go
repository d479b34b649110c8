package filler

import (
	"fmt"
	"image"
	"math/rand"
	"sort"
	"testing"

	"github.com/nbarena/gmpatch/replacements"
	"github.com/nbarena/gmpatch/sprites"
)

// img returns an opaque w×h image.
func img(w, h int) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(m.Pix); i += 4 {
		m.Pix[i+3] = 255
	}
	return m
}

func widthsPool(maxUses int, widths ...int) *Pool {
	set := replacements.Set{}
	for i, w := range widths {
		set[sprites.Key{Sprite: "filler", Frame: i}] = img(w, 10)
	}
	return NewPool(set, []string{"filler"}, maxUses)
}

func TestPickFairness(t *testing.T) {
	tests := []struct {
		name   string
		target int
		want   []int // picked widths, 0 = none
	}{
		{"all candidates fit", 45, []int{40, 30, 20, 40, 30, 20, 0}},
		{"only narrowest fits", 25, []int{20, 20, 0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := widthsPool(2, 40, 30, 20)
			for i, want := range tt.want {
				consumer := sprites.Key{Sprite: "consumer", Frame: i}
				got, source, _, ok := p.Pick(consumer, tt.target, 10)
				if want == 0 {
					if ok {
						t.Fatalf("request %d: picked %v, want none", i+1, source)
					}
					continue
				}
				if !ok {
					t.Fatalf("request %d: no filler, want width %d", i+1, want)
				}
				if trimmed := nonEmptyWidth(got); trimmed != want {
					t.Errorf("request %d: picked width %d, want %d", i+1, trimmed, want)
				}
			}

			for _, u := range p.Usage() {
				if len(u.Consumers) > 2 {
					t.Errorf("%v used %d times", u.Source, len(u.Consumers))
				}
			}
		})
	}
}

// nonEmptyWidth counts the opaque pixels of the top row.
func nonEmptyWidth(m *image.NRGBA) int {
	n := 0
	for x := 0; x < m.Rect.Dx(); x++ {
		if m.NRGBAAt(x, 0).A != 0 {
			n++
		}
	}
	return n
}

func TestPickFitsImage(t *testing.T) {
	set := replacements.Set{}
	tall := img(4, 8)
	short := img(6, 2)
	set[sprites.Key{Sprite: "f", Frame: 0}] = tall
	set[sprites.Key{Sprite: "f", Frame: 1}] = short
	p := NewPool(set, []string{"f"}, 4)

	// Largest first: 6x2 is picked for the first request.
	m, source, cropped, ok := p.Pick(sprites.Key{Sprite: "c", Frame: 0}, 10, 5)
	if !ok || source.Frame != 1 || cropped {
		t.Fatalf("first pick = %v cropped=%v ok=%v", source, cropped, ok)
	}
	if m.Rect.Size() != image.Pt(10, 5) {
		t.Fatalf("size = %v", m.Rect.Size())
	}
	if m.NRGBAAt(2, 3).A != 255 || m.NRGBAAt(2, 2).A != 0 || m.NRGBAAt(1, 4).A != 0 {
		t.Errorf("short filler not bottom aligned and centered")
	}

	// 6x2 now has a use, so the unused 4x8 comes first and gets cropped.
	m, source, cropped, ok = p.Pick(sprites.Key{Sprite: "c", Frame: 1}, 10, 5)
	if !ok || source.Frame != 0 || !cropped {
		t.Fatalf("second pick = %v cropped=%v ok=%v", source, cropped, ok)
	}
	if m.NRGBAAt(3, 0).A != 255 || m.NRGBAAt(3, 4).A != 255 || m.NRGBAAt(2, 0).A != 0 {
		t.Errorf("tall filler not top cropped and centered")
	}
}

func TestNewPoolFiltersSprites(t *testing.T) {
	set := replacements.Set{
		{Sprite: "a", Frame: 0}: img(1, 1),
		{Sprite: "b", Frame: 0}: img(1, 1),
		{Sprite: "a", Frame: 3}: img(1, 1),
	}
	if n := NewPool(set, []string{"a"}, 4).Len(); n != 2 {
		t.Errorf("pool has %d candidates, want 2", n)
	}
}

// stableResortPool is the straightforward version: a full stable sort after
// every pick.
type stableResortPool struct {
	order   []*candidate
	maxUses int
}

func (p *stableResortPool) pick(consumer sprites.Key, w int) (sprites.Key, bool) {
	for _, c := range p.order {
		if c.width() <= w && len(c.consumers) < p.maxUses {
			c.consumers = append(c.consumers, consumer)
			sort.SliceStable(p.order, func(i, j int) bool {
				return fairer(p.order[i], p.order[j])
			})
			return c.key, true
		}
	}
	return sprites.Key{}, false
}

func TestReorderMatchesStableSort(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 50; round++ {
		set := replacements.Set{}
		n := 1 + rng.Intn(12)
		for i := 0; i < n; i++ {
			// Few distinct sizes so ties are common.
			set[sprites.Key{Sprite: "f", Frame: i}] = img(1+rng.Intn(4), 1+rng.Intn(3))
		}
		maxUses := 1 + rng.Intn(4)

		p := NewPool(set, []string{"f"}, maxUses)
		ref := NewPool(set, []string{"f"}, maxUses)
		naive := &stableResortPool{order: ref.order, maxUses: maxUses}

		for req := 0; req < 40; req++ {
			w := 1 + rng.Intn(5)
			consumer := sprites.Key{Sprite: "c", Frame: req}
			_, got, _, gotOK := p.Pick(consumer, w, 1)
			want, wantOK := naive.pick(consumer, w)
			if got != want || gotOK != wantOK {
				t.Fatalf("round %d request %d: got %v %v, want %v %v", round, req, got, gotOK, want, wantOK)
			}
		}
	}
}

func TestUsageOrder(t *testing.T) {
	p := widthsPool(4, 40, 30)
	for i := 0; i < 3; i++ {
		p.Pick(sprites.Key{Sprite: "c", Frame: i}, 100, 10)
	}

	us := p.Usage()
	if len(us) != 2 {
		t.Fatalf("usage = %v", us)
	}
	if len(us[0].Consumers) != 1 || len(us[1].Consumers) != 2 {
		t.Errorf("usage not sorted by count: %v", us)
	}
	if us[1].Source.Frame != 0 || us[1].Consumers[1] != (sprites.Key{Sprite: "c", Frame: 2}) {
		t.Errorf("usage = %v", us)
	}
}

func TestFill(t *testing.T) {
	idx := &sprites.Index{
		Sprites: []*sprites.Record{
			{Name: "req", Frames: []sprites.FrameRect{
				{Frame: 0, Width: 8, Height: 4},
				{Frame: 1, Width: 8, Height: 4},
				{Frame: 2, Width: 1, Height: 4},
			}},
			{Name: "other", Frames: []sprites.FrameRect{{Frame: 0, Width: 8, Height: 4}}},
		},
		Required: map[string]bool{"req": true},
	}

	own := img(8, 4)
	set := replacements.Set{
		{Sprite: "req", Frame: 1}:    own,
		{Sprite: "filler", Frame: 0}: img(6, 6),
	}
	pool := NewPool(set, []string{"filler"}, 4)

	st := Fill(idx, set, pool)
	want := Stats{Filled: 1, Taller: 1, Missing: 1}
	if st != want {
		t.Errorf("stats = %+v, want %+v", st, want)
	}

	if set[sprites.Key{Sprite: "req", Frame: 1}] != own {
		t.Errorf("own artwork replaced by filler")
	}
	if m := set[sprites.Key{Sprite: "req", Frame: 0}]; m == nil || m.Rect.Size() != image.Pt(8, 4) {
		t.Errorf("req/0 filler = %v", m)
	}
	if _, ok := set[sprites.Key{Sprite: "other", Frame: 0}]; ok {
		t.Errorf("filler given to a sprite that is not required")
	}
	if _, ok := set[sprites.Key{Sprite: "req", Frame: 2}]; ok {
		t.Errorf("filler wider than the frame was used")
	}
}

func Example_fairness() {
	p := widthsPool(2, 40, 30, 20)
	for i := 0; i < 7; i++ {
		m, _, _, ok := p.Pick(sprites.Key{Sprite: "c", Frame: i}, 45, 10)
		if !ok {
			fmt.Println("none")
			continue
		}
		fmt.Println(nonEmptyWidth(m))
	}
	// Output:
	// 40
	// 30
	// 20
	// 40
	// 30
	// 20
	// none
}
