package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/joseph-ayodele/rfq-tracker/internal/async"
)

// Inbox feeds files discovered by the watcher into a processing queue.
// A file whose content was already queued is skipped, so repeated write
// events and re-saved copies are extracted once.
type Inbox struct {
	queue   async.Queue
	variant string
	tenant  string
	logger  *slog.Logger

	mu   sync.Mutex
	seen map[string]string // content hash -> first path
}

func NewInbox(queue async.Queue, variant, tenant string, logger *slog.Logger) *Inbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inbox{
		queue:   queue,
		variant: variant,
		tenant:  tenant,
		logger:  logger,
		seen:    map[string]string{},
	}
}

// Run consumes paths until the channel closes or ctx is done.
func (i *Inbox) Run(ctx context.Context, paths <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-paths:
			if !ok {
				return
			}
			if _, err := i.Submit(ctx, p); err != nil {
				i.logger.Error("ingest.inbox.submit_failed", "path", p, "error", err)
			}
		}
	}
}

// Submit hashes the file and enqueues it unless identical content was
// queued before. It reports whether the file was enqueued.
func (i *Inbox) Submit(ctx context.Context, path string) (bool, error) {
	sum, err := hashFile(path)
	if err != nil {
		return false, err
	}

	i.mu.Lock()
	if first, dup := i.seen[sum]; dup {
		i.mu.Unlock()
		i.logger.Info("ingest.inbox.duplicate", "path", path, "first", first)
		return false, nil
	}
	i.seen[sum] = path
	i.mu.Unlock()

	err = i.queue.Enqueue(ctx, async.Job{
		Path:    path,
		Variant: i.variant,
		Tenant:  i.tenant,
		TraceID: sum[:16],
	})
	if err != nil {
		i.mu.Lock()
		delete(i.seen, sum)
		i.mu.Unlock()
		return false, err
	}
	return true, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
