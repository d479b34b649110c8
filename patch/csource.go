package patch

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var nonIdent = regexp.MustCompile(`(?i)[^_a-z0-9]`)

func ident(s string) string {
	return nonIdent.ReplaceAllString(s, "_")
}

// EscapeC renders s as the body of a C string literal. Bytes outside
// printable ASCII are written as \x escapes of the UTF-8 encoding.
func EscapeC(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			b.WriteString(`\"`)
		case c == '\\':
			b.WriteString(`\\`)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\r':
			b.WriteString(`\r`)
		case c == '\t':
			b.WriteString(`\t`)
		case c >= 0x20 && c <= 0x7e:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, `\x%02x`, c)
		}
	}
	return b.String()
}

func dataName(prefix string, id int) string {
	return fmt.Sprintf("%s_%05d_data", prefix, id)
}

func HeaderName(prefix string) string { return prefix + "_patch_def.h" }
func SourceName(prefix string) string { return prefix + "_patch_def.c" }
func DataFileName(prefix string, id int) string {
	return dataName(prefix, id) + ".c"
}

func WriteHeader(w io.Writer, prefix string, t *Table) error {
	guard := strings.ToUpper(ident(prefix)) + "_PATCH_DEF_H"

	if _, err := fmt.Fprintf(w, "#ifndef %s\n#define %s\n#pragma once\n\n", guard, guard); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "#include <stdint.h>\n#include \"game_maker.h\"\n\n"); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "#ifdef __cplusplus\nextern \"C\" {\n#endif\n\n"); err != nil {
		return err
	}

	for _, tex := range t.Textures() {
		if _, err := fmt.Fprintf(w, "extern const uint8_t %s[];\n", dataName(prefix, tex.PageID)); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "extern const struct gm_patch %s_patches[];\n\n", prefix); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "#ifdef __cplusplus\n}\n#endif\n\n#endif\n"); err != nil {
		return err
	}

	return nil
}

func writeSpriteArray(w io.Writer, prefix string, s *SpriteEntry) error {
	if _, err := fmt.Fprintf(w, "\nstatic struct gm_patch_sprt_entry %s_sprt_%s[] = {\n", prefix, ident(s.Name)); err != nil {
		return err
	}

	for i, f := range s.Frames {
		sep := ","
		if i == len(s.Frames)-1 {
			sep = ""
		}
		if _, err := fmt.Fprintf(w, "\t{%d, %d, %d, %d, %d, %d}%s\n", f.Frame, f.X, f.Y, f.Width, f.Height, f.PageID, sep); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "};\n"); err != nil {
		return err
	}

	return nil
}

// WriteSource writes the patch array. Texture entries always reference the
// uncompressed PNG data files.
func WriteSource(w io.Writer, prefix string, t *Table) error {
	if _, err := fmt.Fprintf(w, "#include \"%s\"\n", HeaderName(prefix)); err != nil {
		return err
	}

	var defs []string
	for _, e := range t.Entries {
		switch e.Kind {
		case KindSprite:
			if err := writeSpriteArray(w, prefix, e.Sprite); err != nil {
				return err
			}
			defs = append(defs, fmt.Sprintf("GM_PATCH_SPRT(\"%s\", %s_sprt_%s, %d)",
				EscapeC(e.Sprite.Name), prefix, ident(e.Sprite.Name), len(e.Sprite.Frames)))

		case KindString:
			defs = append(defs, fmt.Sprintf("GM_PATCH_STRG(%d, \"%s\", \"%s\")",
				e.String.Index, EscapeC(e.String.Old), EscapeC(e.String.New)))

		case KindTexture:
			tex := e.Texture
			defs = append(defs, fmt.Sprintf("GM_PATCH_TXTR(%d, %s, %d, %d, %d)",
				tex.PageID, dataName(prefix, tex.PageID), tex.Size, tex.Width, tex.Height))

		case KindEnd:
			defs = append(defs, "GM_PATCH_END")
		}
	}

	if _, err := fmt.Fprintf(w, "\nconst struct gm_patch %s_patches[] = {\n\t%s\n};\n", prefix, strings.Join(defs, ",\n\t")); err != nil {
		return err
	}

	return nil
}

// WriteData writes one page as a C byte array, eight bytes per line.
func WriteData(w io.Writer, prefix string, id int, data []byte) error {
	if _, err := fmt.Fprintf(w, "#include <stdint.h>\n\nconst uint8_t %s[] = {\n", dataName(prefix, id)); err != nil {
		return err
	}

	for i := 0; i < len(data); i += 8 {
		end := i + 8
		if end > len(data) {
			end = len(data)
		}

		var line bytes.Buffer
		line.WriteByte('\t')
		for j, c := range data[i:end] {
			if j > 0 {
				line.WriteString(", ")
			}
			fmt.Fprintf(&line, "0x%02x", c)
		}
		if end < len(data) {
			line.WriteByte(',')
		}
		line.WriteByte('\n')

		if _, err := w.Write(line.Bytes()); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "};\n"); err != nil {
		return err
	}

	return nil
}
