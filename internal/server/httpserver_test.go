package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPServer_ShutdownEndsStreams(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	router := gin.New()
	router.GET("/stream", func(c *gin.Context) {
		close(entered)
		c.Stream(func(_ io.Writer) bool {
			select {
			case <-c.Request.Context().Done():
				return false
			case <-time.After(10 * time.Millisecond):
				c.SSEvent("ping", "ok")
				return true
			}
		})
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewHTTPServer(ln.Addr().String(), router)
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ln) }()

	resp := make(chan error, 1)
	go func() {
		r, err := http.Get("http://" + ln.Addr().String() + "/stream")
		if err == nil {
			_, err = io.Copy(io.Discard, r.Body)
			r.Body.Close()
		}
		resp <- err
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	require.ErrorIs(t, <-served, http.ErrServerClosed)
	require.NoError(t, <-resp)
}
