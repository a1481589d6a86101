package manifest

import (
	"bytes"
	"encoding/json"
)

// offsetIndex is a minimal, best-effort byte-offset index over a JSON
// document's object keys, built by re-walking the token stream with
// json.Decoder.InputOffset(). It exists to satisfy spec.md's requirement
// that diagnostics carry file+offset ranges, without pulling in a full
// JSON-AST dependency for what spec.md itself treats as an out-of-scope,
// externally-supplied concern (§1: "JSON-with-source-positions parsing...
// assumed").
//
// Keys are indexed by their dotted path, e.g. "wireit.build.dependencies.0".
type offsetIndex map[string]Position

// buildOffsetIndex walks data and records the start offset of every object
// key and array element under the given file name. It is tolerant of
// malformed trailing content; callers validate syntax separately via
// json.Unmarshal.
func buildOffsetIndex(file string, data []byte) offsetIndex {
	idx := make(offsetIndex)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	walkOffsets(dec, data, "", idx)
	return idx
}

func walkOffsets(dec *json.Decoder, data []byte, path string, idx offsetIndex) {
	start := int(dec.InputOffset())
	tok, err := dec.Token()
	if err != nil {
		return
	}
	delim, isDelim := tok.(json.Delim)
	if !isDelim {
		if path != "" {
			idx[path] = Position{Offset: start, End: int(dec.InputOffset())}
		}
		return
	}

	switch delim {
	case '{':
		if path != "" {
			idx[path] = Position{Offset: start, End: -1}
		}
		for dec.More() {
			keyStart := int(dec.InputOffset())
			keyTok, err := dec.Token()
			if err != nil {
				return
			}
			key, _ := keyTok.(string)
			childPath := joinPath(path, key)
			idx[childPath] = Position{Offset: keyStart, End: -1}
			walkOffsets(dec, data, childPath, idx)
		}
		// consume closing '}'
		if _, err := dec.Token(); err != nil {
			return
		}
		if e, ok := idx[path]; ok {
			e.End = int(dec.InputOffset())
			idx[path] = e
		}
	case '[':
		if path != "" {
			idx[path] = Position{Offset: start, End: -1}
		}
		i := 0
		for dec.More() {
			childPath := joinPath(path, itoa(i))
			walkOffsets(dec, data, childPath, idx)
			i++
		}
		if _, err := dec.Token(); err != nil {
			return
		}
		if e, ok := idx[path]; ok {
			e.End = int(dec.InputOffset())
			idx[path] = e
		}
	}
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[pos:])
}

// positionFor returns the Position for a dotted path, or a file-only
// Position (offset 0) if the path was never indexed (e.g. a key that does
// not exist in the source but is being reported on for other reasons, such
// as a missing required field).
func (idx offsetIndex) positionFor(file, path string) Position {
	if p, ok := idx[path]; ok {
		p.File = file
		return p
	}
	return Position{File: file}
}
