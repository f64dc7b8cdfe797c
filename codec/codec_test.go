package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	for _, name := range Names() {
		c, ok := ByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, c.Name())
	}

	_, ok := ByName("msgpack")
	assert.False(t, ok)
	assert.Equal(t, []string{"go-json", "json"}, Names())
}

func TestNewRecord(t *testing.T) {
	r := NewRecord(3, 2, []float64{1, 2, 3, 4, 5, 6})
	assert.Equal(t, 3, r.Particle)
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}, {5, 6}}, r.States)

	// Rows are capped so appending to one cannot clobber the next.
	r.States[0] = append(r.States[0], 99)
	assert.Equal(t, []float64{3, 4}, r.States[1])
}

func TestLineWriter_RoundTrip(t *testing.T) {
	records := []Record{
		NewRecord(0, 1, []float64{0.5, -1, 2}),
		NewRecord(1, 1, []float64{0.25, 0, 3}),
	}

	for _, c := range []Codec{JSON{}, GoJSON{}, nil} {
		var buf bytes.Buffer
		lw := NewLineWriter(&buf, c)
		for _, r := range records {
			require.NoError(t, lw.Write(r))
		}
		require.NoError(t, lw.Flush())
		assert.Equal(t, 2, lw.Lines())
		assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\n")))

		var got []Record
		require.NoError(t, ReadLines(&buf, c, func(r Record) error {
			got = append(got, r)
			return nil
		}))
		assert.Equal(t, records, got)
	}
}

func TestReadLines_Errors(t *testing.T) {
	err := ReadLines(bytes.NewBufferString("{\"particle\":1}\n\nnot json\n"), JSON{}, func(Record) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")

	stop := errors.New("stop")
	err = ReadLines(bytes.NewBufferString("{}\n{}\n"), GoJSON{}, func(Record) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestMustMarshal(t *testing.T) {
	assert.Equal(t, []byte(`{"particle":0,"states":null}`), MustMarshal(nil, Record{}))
	assert.Panics(t, func() { MustMarshal(JSON{}, make(chan int)) })
}
