package patch

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("patch: CBOR encoder: " + err.Error())
	}
	decMode, err = cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		panic("patch: CBOR decoder: " + err.Error())
	}
}

// MarshalTable encodes t as Core Deterministic CBOR.
func MarshalTable(t *Table) ([]byte, error) {
	return encMode.Marshal(t)
}

// UnmarshalTable decodes a table and checks that every entry carries the
// member its kind selects.
func UnmarshalTable(b []byte) (*Table, error) {
	var t Table
	if err := decMode.Unmarshal(b, &t); err != nil {
		return nil, err
	}

	for i, e := range t.Entries {
		var ok bool
		switch e.Kind {
		case KindSprite:
			ok = e.Sprite != nil && e.String == nil && e.Texture == nil
		case KindString:
			ok = e.String != nil && e.Sprite == nil && e.Texture == nil
		case KindTexture:
			ok = e.Texture != nil && e.Sprite == nil && e.String == nil
		case KindEnd:
			ok = e.Sprite == nil && e.String == nil && e.Texture == nil && i == len(t.Entries)-1
		}
		if !ok {
			return nil, fmt.Errorf("malformed %s entry %d", e.Kind, i)
		}
	}
	if n := len(t.Entries); n == 0 || t.Entries[n-1].Kind != KindEnd {
		return nil, fmt.Errorf("patch table has no end marker")
	}
	return &t, nil
}
