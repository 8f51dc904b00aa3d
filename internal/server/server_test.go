package server

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xtaci/smux"

	"github.com/voidiz/seedmirror/internal/message"
)

func TestHandleConnectionSendsConnectedThenFileUpdated(t *testing.T) {
	dir := t.TempDir()

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go handleConnection(ctx, serverConn, 20*time.Millisecond)

	clientSess, err := smux.Client(clientConn, nil)
	require.NoError(t, err)
	defer clientSess.Close()

	stream, err := clientSess.OpenStream()
	require.NoError(t, err)
	defer stream.Close()

	require.NoError(t, message.Write(stream, message.ConnectionRequest([]string{dir})))

	reader := bufio.NewReader(stream)

	connected, err := message.Read(reader)
	require.NoError(t, err)
	require.Equal(t, message.KindConnected, connected.Kind)

	path := filepath.Join(dir, "touched.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	updated, err := message.Read(reader)
	require.NoError(t, err)
	require.Equal(t, message.KindFileUpdated, updated.Kind)
	require.Equal(t, path, updated.Path)
}
