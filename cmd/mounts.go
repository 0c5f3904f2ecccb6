package cmd

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/treeforge/internal/config"
)

// MountMetadata records a live preview mount so other invocations can find it.
type MountMetadata struct {
	PID        int       `json:"pid"`
	MountPoint string    `json:"mount_point"`
	Port       int       `json:"port"`
	Session    string    `json:"session"` // session database path
	Timestamp  time.Time `json:"timestamp"`
	Writable   bool      `json:"writable"`
}

// mountsDir holds one sidecar per active mount.
func mountsDir() (string, error) {
	dir := filepath.Join(config.Dir(), "mounts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// sidecarName derives a stable file name from the mount point.
// Format: basename-hash (e.g. "preview-a1b2c3.meta.json")
func sidecarName(mountPoint string) string {
	hash := sha256.Sum256([]byte(mountPoint))
	return fmt.Sprintf("%s-%s.meta.json", filepath.Base(mountPoint), hex.EncodeToString(hash[:3]))
}

func registerMount(meta *MountMetadata) error {
	dir, err := mountsDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, sidecarName(meta.MountPoint)), data, 0o644)
}

func unregisterMount(mountPoint string) {
	dir, err := mountsDir()
	if err != nil {
		return
	}
	_ = os.Remove(filepath.Join(dir, sidecarName(mountPoint))) // best-effort
}

// listMounts reads every sidecar in the mounts directory. Unreadable
// sidecars are skipped.
func listMounts() ([]*MountMetadata, error) {
	dir, err := mountsDir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var mounts []*MountMetadata
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".meta.json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var meta MountMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		mounts = append(mounts, &meta)
	}
	return mounts, nil
}

// isProcessRunning checks if a process with the given PID is running.
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds. Send signal 0 to check if alive.
	return process.Signal(syscall.Signal(0)) == nil
}

var mountsPrune bool

func init() {
	mountsCmd.Flags().BoolVar(&mountsPrune, "prune", false, "Remove records whose process has exited")
}

var mountsCmd = &cobra.Command{
	Use:   "mounts",
	Short: "List preview mounts started by this user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		mounts, err := listMounts()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "MOUNT\tPORT\tPID\tSTATE\tSINCE")
		for _, m := range mounts {
			state := "running"
			if !isProcessRunning(m.PID) {
				state = "stale"
				if mountsPrune {
					unregisterMount(m.MountPoint)
					continue
				}
			}
			if m.Writable {
				state += ",rw"
			}
			fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", m.MountPoint, m.Port, m.PID, state, m.Timestamp.Format(time.DateTime))
		}
		return tw.Flush()
	},
}
