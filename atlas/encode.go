package atlas

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"strconv"
	"strings"

	"github.com/nbarena/pngchunks"
	"golang.org/x/sync/errgroup"
)

// PageKeyword names the tEXt chunk recording the page id in every encoded
// page.
const PageKeyword = "gmpatch-page"

func encodePage(img image.Image, id int) ([]byte, error) {
	pipeR, pipeW := io.Pipe()

	var g errgroup.Group
	g.Go(func() error {
		err := png.Encode(pipeW, img)
		pipeW.CloseWithError(err)
		return err
	})

	var buf bytes.Buffer
	err := injectText(&buf, pipeR, PageKeyword, strconv.Itoa(id))
	// Unblocks the encoder if injectText stopped early.
	pipeR.CloseWithError(err)
	if werr := g.Wait(); err == nil {
		err = werr
	}
	if err != nil {
		return nil, fmt.Errorf("%w while encoding page %d", err, id)
	}
	return buf.Bytes(), nil
}

// injectText copies the PNG stream r to w, adding a tEXt chunk right
// before the first IDAT.
func injectText(w io.Writer, r io.Reader, keyword, text string) error {
	pngr, err := pngchunks.NewReader(r)
	if err != nil {
		return err
	}

	pngw, err := pngchunks.NewWriter(w)
	if err != nil {
		return err
	}

	var textWritten bool
	for {
		chunk, err := pngr.NextChunk()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}

		if chunk.Type() == "IDAT" && !textWritten {
			payload := keyword + "\x00" + text
			if err := pngw.WriteChunk(int32(len(payload)), "tEXt", strings.NewReader(payload)); err != nil {
				return err
			}
			textWritten = true
		}

		if err := pngw.WriteChunk(chunk.Length(), chunk.Type(), chunk); err != nil {
			return err
		}

		if err := chunk.Close(); err != nil {
			return err
		}
	}

	return nil
}

// ReadPageText returns the text of the first tEXt chunk with keyword.
func ReadPageText(b []byte, keyword string) (string, bool, error) {
	pngr, err := pngchunks.NewReader(bytes.NewReader(b))
	if err != nil {
		return "", false, err
	}

	for {
		chunk, err := pngr.NextChunk()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", false, nil
			}
			return "", false, err
		}

		if chunk.Type() == "tEXt" {
			data, err := io.ReadAll(chunk)
			if err != nil {
				return "", false, err
			}
			if k, v, ok := strings.Cut(string(data), "\x00"); ok && k == keyword {
				return v, true, nil
			}
		}

		if err := chunk.Close(); err != nil {
			return "", false, err
		}
	}
}
