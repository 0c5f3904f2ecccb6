package nfsmount

import (
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	nfs "github.com/willscott/go-nfs"
	nfshelper "github.com/willscott/go-nfs/helpers"
)

// Server manages the NFS server lifecycle.
type Server struct {
	listener net.Listener
	port     int
	done     chan error
}

// NewServer starts an NFS server on localhost backed by fs. Port 0 picks an
// ephemeral port.
func NewServer(fs billy.Filesystem, port int) (*Server, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("nfs listen: %w", err)
	}
	port = listener.Addr().(*net.TCPAddr).Port

	handler := nfshelper.NewNullAuthHandler(fs)
	// Handle cache size; the preview rarely exceeds a few hundred paths.
	cacheHelper := nfshelper.NewCachingHandler(handler, 1024)

	srv := &Server{listener: listener, port: port, done: make(chan error, 1)}
	go func() {
		srv.done <- nfs.Serve(listener, cacheHelper)
	}()
	return srv, nil
}

// Done yields the serve loop's exit error once the listener is closed.
func (s *Server) Done() <-chan error {
	return s.done
}

// Port returns the TCP port the NFS server is listening on.
func (s *Server) Port() int {
	return s.port
}

// Close stops the NFS server by closing the listener.
func (s *Server) Close() error {
	return s.listener.Close()
}

// Mount runs the system mount command against the server on port. It
// shells out through sudo.
func Mount(port int, mountpoint string, writable bool) error {
	args, err := mountArgs(runtime.GOOS, port, mountpoint, writable)
	if err != nil {
		return err
	}
	if out, err := exec.Command("sudo", args...).CombinedOutput(); err != nil {
		return fmt.Errorf("mount failed: %w\n%s", err, out)
	}
	return nil
}

// mountArgs builds the arguments to sudo for an NFSv3 loopback mount.
func mountArgs(goos string, port int, mountpoint string, writable bool) ([]string, error) {
	opts := []string{
		fmt.Sprintf("port=%d", port),
		fmt.Sprintf("mountport=%d", port),
		"vers=3", "tcp",
	}
	switch goos {
	case "darwin":
		opts = append(opts, "locallocks", "noresvport")
		if !writable {
			opts = append(opts, "rdonly")
		}
	case "linux":
		opts = append(opts, "local_lock=all", "nolock")
		if !writable {
			opts = append(opts, "ro")
		}
	default:
		return nil, fmt.Errorf("unsupported OS: %s", goos)
	}
	return []string{"mount", "-t", "nfs", "-o", strings.Join(opts, ","), "localhost:/", mountpoint}, nil
}

// Unmount detaches mountpoint. On macOS diskutil is tried first since it
// does not need sudo for user mounts.
func Unmount(mountpoint string) error {
	if runtime.GOOS == "darwin" {
		if err := exec.Command("diskutil", "unmount", mountpoint).Run(); err == nil {
			return nil
		}
	}
	if out, err := exec.Command("sudo", "umount", mountpoint).CombinedOutput(); err != nil {
		return fmt.Errorf("unmount failed: %w\n%s", err, out)
	}
	return nil
}
