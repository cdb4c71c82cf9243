package logging

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartPprof(t *testing.T) {
	addr, err := startPprof("127.0.0.1:0")
	require.NoError(t, err)
	require.NotEmpty(t, addr)

	resp, err := http.Get(fmt.Sprintf("http://%s/debug/pprof/cmdline", addr))
	require.NoError(t, err)
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartPprofBadAddr(t *testing.T) {
	_, err := startPprof("not-an-address")
	assert.Error(t, err)
}
