package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nbarena/gmpatch/archive"
	"github.com/nbarena/gmpatch/archive/archivetest"
)

func pagesArchive(t *testing.T, n int) *archive.Archive {
	t.Helper()
	b := &archivetest.Builder{Strings: []string{"Start", "Quit"}}
	for i := 0; i < n; i++ {
		b.Pages = append(b.Pages, archivetest.SolidPage(4, 4, [4]uint8{uint8(i), 0, 0, 255}))
	}
	data, _ := b.Build()
	a, err := archive.Open(data)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return a
}

func TestDumpPages(t *testing.T) {
	dir := t.TempDir()
	if err := dumpPages(context.Background(), pagesArchive(t, 3), dir); err != nil {
		t.Fatalf("dumpPages: %v", err)
	}
	for _, name := range []string{"00000.png", "00001.png", "00002.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestDumpPagesReportsWriteError(t *testing.T) {
	a := pagesArchive(t, 16)
	dir := filepath.Join(t.TempDir(), "missing", "dir")

	errc := make(chan error, 1)
	go func() { errc <- dumpPages(context.Background(), a, dir) }()

	select {
	case err := <-errc:
		if err == nil {
			t.Fatal("dumpPages succeeded without an output directory")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("dumpPages did not return after its workers failed")
	}
}

func TestDumpStringTable(t *testing.T) {
	dir := t.TempDir()
	if err := dumpStringTable(pagesArchive(t, 0), dir); err != nil {
		t.Fatalf("dumpStringTable: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "strings.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	var strs []dumpedString
	if err := yaml.Unmarshal(got, &strs); err != nil {
		t.Fatalf("strings.yaml: %v", err)
	}
	want := []dumpedString{{0, "Start"}, {1, "Quit"}}
	if !reflect.DeepEqual(strs, want) {
		t.Errorf("strings = %v, want %v", strs, want)
	}
}
