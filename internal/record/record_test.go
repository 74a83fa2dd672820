package record

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
	}{
		{"set", Set("key", "value")},
		{"remove", Remove("key")},
		{"set long value", Set("k", string(make([]byte, 1000)))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			_, err := Encode(&buf, tt.rec)
			require.NoError(t, err)

			dec := NewDecoder(&buf)
			got, _, err := dec.Next()
			require.NoError(t, err)
			require.Equal(t, tt.rec, got)
		})
	}
}

func TestDecoderOffsetsAcrossRecords(t *testing.T) {
	var buf bytes.Buffer
	recs := []Record{Set("a", "1"), Set("a", "2"), Remove("a")}
	var ends []int64
	for _, r := range recs {
		_, err := Encode(&buf, r)
		require.NoError(t, err)
		ends = append(ends, int64(buf.Len()))
	}

	dec := NewDecoder(bytes.NewReader(buf.Bytes()))
	for i, want := range recs {
		got, offset, err := dec.Next()
		require.NoError(t, err)
		require.Equal(t, want, got)
		require.Equal(t, ends[i], offset, "offset after record %d", i)
	}

	_, _, err := dec.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestDecoderWhitespaceTolerant(t *testing.T) {
	var buf bytes.Buffer
	_, err := Encode(&buf, Set("a", "1"))
	require.NoError(t, err)
	buf.WriteString("\n\n  \n")
	_, err = Encode(&buf, Set("b", "2"))
	require.NoError(t, err)

	dec := NewDecoder(&buf)
	r1, _, err := dec.Next()
	require.NoError(t, err)
	require.Equal(t, Set("a", "1"), r1)

	r2, _, err := dec.Next()
	require.NoError(t, err)
	require.Equal(t, Set("b", "2"), r2)
}

func TestDecoderTruncatedTrailingRecordIsCorruption(t *testing.T) {
	var buf bytes.Buffer
	_, err := Encode(&buf, Set("a", "1"))
	require.NoError(t, err)
	buf.WriteString(`{"kind":"set","key":"b","valu`)

	dec := NewDecoder(&buf)
	_, _, err = dec.Next()
	require.NoError(t, err)

	_, _, err = dec.Next()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrCorruption)
}

func TestFromWireRejectsMalformedRecords(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"empty key set", `{"kind":"set","key":"","value":"v"}`},
		{"empty value set", `{"kind":"set","key":"k","value":""}`},
		{"empty key rm", `{"kind":"rm","key":""}`},
		{"unknown kind", `{"kind":"bogus","key":"k"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := NewDecoder(bytes.NewReader([]byte(tt.json)))
			_, _, err := dec.Next()
			require.ErrorIs(t, err, ErrCorruption)
		})
	}
}
