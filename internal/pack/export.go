package pack

import (
	"context"
	"log/slog"
	"time"

	"github.com/agentic-research/treeforge/internal/logging"
	"github.com/agentic-research/treeforge/internal/session"
)

// Result describes a delivered archive.
type Result struct {
	Name     string
	Location string
	Size     int
	Entries  int
}

// Exporter packages session snapshots and hands them to a sink.
type Exporter struct {
	Sink   Sink
	Now    func() time.Time
	Logger *slog.Logger

	last Result
}

// Export is shaped for session.Package.
func (x *Exporter) Export(ctx context.Context, snap session.Snapshot) error {
	now := time.Now
	if x.Now != nil {
		now = x.Now
	}
	log := logging.OrDiscard(x.Logger)

	archive, err := Build(ctx, snap.Tree, snap.Errors, now())
	if err != nil {
		return err
	}
	loc, err := x.Sink.Put(ctx, archive.Name, archive.Data)
	if err != nil {
		return err
	}
	x.last = Result{Name: archive.Name, Location: loc, Size: len(archive.Data), Entries: len(archive.Entries)}
	log.Info("archive written", "name", archive.Name, "location", loc, "bytes", len(archive.Data))
	return nil
}

// Last is the result of the most recent successful Export. Read it only
// after the export has finished.
func (x *Exporter) Last() Result { return x.last }
