package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycore/tcpsock"
)

func TestBuildCodec_SizePrefix(t *testing.T) {
	codec, err := buildCodec(FramingConfig{Mode: "size-prefix"})
	require.NoError(t, err)
	_, ok := codec.(*socket.SizePrefixCodec)
	assert.True(t, ok)
}

func TestBuildCodec_Delimiter(t *testing.T) {
	codec, err := buildCodec(FramingConfig{Mode: "delimiter", Delimiter: "\n"})
	require.NoError(t, err)
	_, ok := codec.(*socket.DelimiterCodec)
	assert.True(t, ok)
}

func TestBuildCodec_Netstring(t *testing.T) {
	codec, err := buildCodec(FramingConfig{Mode: "netstring"})
	require.NoError(t, err)
	_, ok := codec.(*socket.NetstringCodec)
	assert.True(t, ok)
}

func TestBuildCodec_UnknownMode(t *testing.T) {
	_, err := buildCodec(FramingConfig{Mode: "bogus"})
	assert.Error(t, err)
}

func TestConcurrencyMode(t *testing.T) {
	assert.Equal(t, socket.SingleThreaded, concurrencyMode("single-threaded"))
	assert.Equal(t, socket.MultiThreaded, concurrencyMode("multi-threaded"))
	assert.Equal(t, socket.MultiThreaded, concurrencyMode(""))
}

func TestConnOptionsFactory_ReturnsThreeOptionsPerCall(t *testing.T) {
	factory, err := connOptionsFactory(FramingConfig{Mode: "size-prefix"}, nopLogger{})
	require.NoError(t, err)

	firstOpts := factory()
	secondOpts := factory()
	assert.Len(t, firstOpts, 3)
	assert.Len(t, secondOpts, 3)
}

func TestConnOptionsFactory_RejectsUnknownMode(t *testing.T) {
	_, err := connOptionsFactory(FramingConfig{Mode: "bogus"}, nopLogger{})
	assert.Error(t, err)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
