package transport

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/opd-ai/kpxc/limits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectReaderSplitsConcatenatedObjects(t *testing.T) {
	stream := `{"action":"database-locked"}{"action":"get-logins","message":"abc","nonce":"n"}` + "\n" + `{"a":{"b":{}}}`
	r := NewObjectReader(strings.NewReader(stream))

	want := []string{
		`{"action":"database-locked"}`,
		`{"action":"get-logins","message":"abc","nonce":"n"}`,
		`{"a":{"b":{}}}`,
	}
	for _, w := range want {
		frame, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, w, string(frame))
	}

	_, err := r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestObjectReaderIgnoresBracesInStrings(t *testing.T) {
	obj := `{"error":"unexpected } and { in \"quoted\" text \\","x":1}`
	r := NewObjectReader(strings.NewReader(obj + `{"y":2}`))

	frame, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, obj, string(frame))

	frame, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"y":2}`, string(frame))
}

func TestObjectReaderHandlesPartialReads(t *testing.T) {
	stream := `{"action":"change-public-keys","publicKey":"cHVibGlj","success":"true"}{"b":2}`
	r := NewObjectReader(iotest.OneByteReader(strings.NewReader(stream)))

	frame, err := r.Next()
	require.NoError(t, err)
	assert.Contains(t, string(frame), "change-public-keys")

	frame, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(frame))
}

func TestObjectReaderSkipsGarbage(t *testing.T) {
	r := NewObjectReader(strings.NewReader(`garbage]]{"ok":true}`))

	_, err := r.Next()
	assert.True(t, errors.Is(err, ErrMalformedFrame), "got %v", err)

	frame, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(frame))
}

func TestObjectReaderTruncatedObject(t *testing.T) {
	r := NewObjectReader(strings.NewReader(`{"action":"get`))
	_, err := r.Next()
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestObjectReaderRejectsOversizedObject(t *testing.T) {
	var b bytes.Buffer
	b.WriteString(`{"message":"`)
	b.Write(bytes.Repeat([]byte("A"), limits.MaxFrameSize))
	b.WriteString(`"}`)

	r := NewObjectReader(&b)
	_, err := r.Next()
	assert.ErrorIs(t, err, limits.ErrFrameTooLarge)
}
