package treeftp

import (
	"net"
	"sync"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingDialer returns a net.Dialer that records every address it dials.
func recordingDialer() (*net.Dialer, func() []string) {
	var (
		mu    sync.Mutex
		dials []string
	)
	d := &net.Dialer{
		Control: func(_, address string, _ syscall.RawConn) error {
			mu.Lock()
			defer mu.Unlock()
			dials = append(dials, address)
			return nil
		},
	}
	return d, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), dials...)
	}
}

func TestWithDialer_UsedForAllConnections(t *testing.T) {
	t.Parallel()
	srv := newFTPServer(t, crawlFS)
	dialer, dials := recordingDialer()

	c, err := Dial(srv.Addr(), WithDialer(dialer))
	require.NoError(t, err)
	defer c.Close()
	require.Equal(t, []string{srv.Addr()}, dials())

	_, err = c.Crawl(0, DepthFirst)
	require.NoError(t, err)

	got := dials()
	require.Len(t, got, 2, "one control and one data connection")
	assert.Equal(t, c.lastData.String(), got[1])
}
