package app

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCircularBuffer(t *testing.T) {
	buf := newBuffer(2)

	msg1 := []byte("session open\n")
	n, err := buf.Write(msg1)
	require.Nil(t, err)
	require.Equal(t, len(msg1), n)
	require.Equal(t, msg1, buf.Bytes())

	// overflow both chunks, oldest lines should be evicted
	big := bytes.Repeat([]byte("x"), chunkSize-1)
	_, _ = buf.Write(big)
	_, _ = buf.Write(big)
	_, _ = buf.Write([]byte("tail"))

	b := buf.Bytes()
	require.NotContains(t, string(b[:16]), "session open")
	require.Contains(t, string(b), "tail")

	var out bytes.Buffer
	_, err = buf.WriteTo(&out)
	require.Nil(t, err)
	require.Equal(t, b, out.Bytes())
}
