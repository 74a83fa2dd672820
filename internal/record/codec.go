package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Encode serializes r as a single JSON object and writes it to w, with no
// trailing separator. JSON objects are self-delimiting, so concatenating
// them directly keeps the bytes Encode writes for one record exactly equal
// to the span Decoder.Next reports for that same record on replay — no
// separator byte to attribute to whichever side of a record boundary reads
// it. Encode is total: any Record produced by Set or Remove serializes
// without error.
func Encode(w io.Writer, r Record) (int, error) {
	data, err := json.Marshal(r.toWire())
	if err != nil {
		return 0, fmt.Errorf("record: encode: %w", err)
	}
	n, err := w.Write(data)
	if err != nil {
		return n, fmt.Errorf("record: write: %w", err)
	}
	return n, nil
}

// Decoder parses a stream of concatenated records. It wraps encoding/json's
// streaming decoder, which natively exposes the byte offset consumed after
// each value (json.Decoder.InputOffset) — the offset-after-record-N
// contract SPEC_FULL.md §4.1 requires, with no separate counting wrapper
// needed around the reader (see DESIGN.md).
type Decoder struct {
	dec *json.Decoder
}

// NewDecoder returns a Decoder reading concatenated records from r. r should
// be positioned at the start of the stream the caller wants offsets to be
// relative to.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: json.NewDecoder(r)}
}

// Next decodes the next record and returns it along with the absolute byte
// offset of the underlying stream immediately past the record's last byte.
// At the end of a well-formed stream it returns io.EOF. A partial or
// malformed trailing record surfaces as ErrCorruption, never silently
// truncated.
func (d *Decoder) Next() (Record, int64, error) {
	var w wireRecord
	if err := d.dec.Decode(&w); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, d.dec.InputOffset(), io.EOF
		}
		return Record{}, d.dec.InputOffset(), fmt.Errorf("%w: %v", ErrCorruption, err)
	}

	rec, err := fromWire(w)
	if err != nil {
		return Record{}, d.dec.InputOffset(), err
	}
	return rec, d.dec.InputOffset(), nil
}
