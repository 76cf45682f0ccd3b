package tinyjs

import (
	"encoding/binary"

	xunicode "golang.org/x/text/encoding/unicode"
)

// utf16BytesToUTF8 decodes a native-endian UTF-16 code unit buffer
// (as handed to the engine by an embedder's DataView or UI toolkit
// string) into Go's UTF-8 string representation, tolerating lone
// surrogates the way `golang.org/x/text/encoding/unicode` does: they
// are replaced, not rejected, since the ECMAScript string model
// itself allows unpaired surrogates (spec §3.3).
func utf16BytesToUTF8(units []uint16) (string, error) {
	raw := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(raw[i*2:], u)
	}
	decoder := xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM).NewDecoder()
	out, err := decoder.Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
