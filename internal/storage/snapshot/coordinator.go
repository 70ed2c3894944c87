package snapshot

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/Jonathanzhao02/strongbox/internal/core/domain"
	"github.com/Jonathanzhao02/strongbox/internal/engine"
	"github.com/Jonathanzhao02/strongbox/internal/storage/cache"
	"github.com/Jonathanzhao02/strongbox/internal/telemetry/metric"
	"github.com/Jonathanzhao02/strongbox/pkg/cmap"
)

// Reloader receives a client's state after a snapshot read replaces the
// in-memory container. service.Client satisfies it.
type Reloader interface {
	Reload(keys map[domain.VaultID][]byte, view engine.View, entries []cache.Entry) error
}

// DefaultFilename is used when a request names neither file nor path.
const DefaultFilename = "main" + FileExtension

// Coordinator owns a Container and serializes all snapshot operations
// through one goroutine. Requests are answered in arrival order, so a
// fill observed before a write is guaranteed to be part of that write.
type Coordinator struct {
	container *Container
	dir       string
	routes    *cmap.Map[domain.ClientID, Reloader]

	mailbox chan coordMsg
	doneCh  chan struct{}

	readLimiter *rate.Limiter
	metrics     *metric.SnapshotMetrics
	logger      *slog.Logger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithCoordinatorLogger sets the structured logger.
func WithCoordinatorLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics attaches operation metrics.
func WithMetrics(m *metric.SnapshotMetrics) CoordinatorOption {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithReadLimit overrides the throttle applied to snapshot file reads.
// Repeated wrong-password probes burn through the burst and then wait.
func WithReadLimit(limit rate.Limit, burst int) CoordinatorOption {
	return func(c *Coordinator) {
		c.readLimiter = rate.NewLimiter(limit, burst)
	}
}

// WithMailboxSize sets the request queue depth.
func WithMailboxSize(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.mailbox = make(chan coordMsg, n)
		}
	}
}

// NewCoordinator creates a coordinator persisting under dir and starts
// its loop.
func NewCoordinator(dir string, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		dir:         dir,
		routes:      cmap.New[domain.ClientID, Reloader](),
		mailbox:     make(chan coordMsg, 64),
		doneCh:      make(chan struct{}),
		readLimiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 5),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.container = NewContainer(c.logger)

	go c.run()
	return c
}

// Register routes reload notifications for a client id.
func (c *Coordinator) Register(clientID domain.ClientID, r Reloader) {
	c.routes.Set(clientID, r)
}

// Deregister removes a client's route.
func (c *Coordinator) Deregister(clientID domain.ClientID) {
	c.routes.Delete(clientID)
}

type coordMsg struct {
	op    string
	fill  *fillReq
	write *writeReq
	read  *readReq
	sync  *SyncRequest
	reply chan error
}

type fillReq struct {
	clientID domain.ClientID
	entry    ClientEntry
}

type writeReq struct {
	filename string
	path     string
	access   Access
}

type readReq struct {
	clientID domain.ClientID
	// sourceID optionally remaps which entry is taken from the file; the
	// zero value means the client's own id.
	sourceID domain.ClientID
	filename string
	path     string
	access   Access
}

// ReadParams names a snapshot read. SourceID lets one client import
// another client's entry (the forwarding case).
type ReadParams struct {
	ClientID domain.ClientID
	SourceID domain.ClientID
	Filename string
	Path     string
	Access   Access
}

// WriteParams names a snapshot write destination.
type WriteParams struct {
	Filename string
	Path     string
	Access   Access
}

func (c *Coordinator) send(ctx context.Context, msg coordMsg) error {
	select {
	case c.mailbox <- msg:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.doneCh:
		return domain.ErrIoFailure.WithDetails("coordinator closed")
	}

	select {
	case err := <-msg.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.doneCh:
		// The loop may have answered before shutting down.
		select {
		case err := <-msg.reply:
			return err
		default:
			return domain.ErrIoFailure.WithDetails("coordinator closed")
		}
	}
}

// Fill stages one client's exported state into the container.
func (c *Coordinator) Fill(ctx context.Context, clientID domain.ClientID, keys map[domain.VaultID][]byte, view engine.View, entries []cache.Entry) error {
	return c.send(ctx, coordMsg{
		op: metric.OpFill,
		fill: &fillReq{
			clientID: clientID,
			entry:    ClientEntry{Keys: keys, Db: view, Store: entries},
		},
		reply: make(chan error, 1),
	})
}

// Write persists the staged state and, on success, clears it.
func (c *Coordinator) Write(ctx context.Context, params WriteParams) error {
	return c.send(ctx, coordMsg{
		op: metric.OpWrite,
		write: &writeReq{
			filename: params.Filename,
			path:     params.Path,
			access:   params.Access,
		},
		reply: make(chan error, 1),
	})
}

// Read loads client state, preferring already-staged data over the file.
// On a disk read the whole container is replaced and the client's
// registered Reloader receives its entry. A wrong key reports
// ErrBadPasswordOrCorrupt and leaves the previous container intact, so
// the caller can retry with another password.
func (c *Coordinator) Read(ctx context.Context, params ReadParams) error {
	return c.send(ctx, coordMsg{
		op: metric.OpRead,
		read: &readReq{
			clientID: params.ClientID,
			sourceID: params.SourceID,
			filename: params.Filename,
			path:     params.Path,
			access:   params.Access,
		},
		reply: make(chan error, 1),
	})
}

// Synchronize merges one client between snapshot files.
func (c *Coordinator) Synchronize(ctx context.Context, req SyncRequest) error {
	r := req
	return c.send(ctx, coordMsg{
		op:    metric.OpSynchronize,
		sync:  &r,
		reply: make(chan error, 1),
	})
}

// Close stops the loop after draining queued requests.
func (c *Coordinator) Close() {
	close(c.doneCh)
}

func (c *Coordinator) run() {
	for {
		select {
		case msg := <-c.mailbox:
			start := time.Now()
			err := c.handle(msg)
			c.metrics.Observe(msg.op, err, time.Since(start))
			msg.reply <- err
		case <-c.doneCh:
			// Drain requests already queued so no caller hangs.
			for {
				select {
				case msg := <-c.mailbox:
					msg.reply <- domain.ErrIoFailure.WithDetails("coordinator closed")
				default:
					return
				}
			}
		}
	}
}

func (c *Coordinator) handle(msg coordMsg) error {
	switch msg.op {
	case metric.OpFill:
		c.container.AddData(msg.fill.clientID, msg.fill.entry)
		return nil
	case metric.OpWrite:
		return c.handleWrite(msg.write)
	case metric.OpRead:
		return c.handleRead(msg.read)
	case metric.OpSynchronize:
		return c.container.Synchronize(*msg.sync)
	default:
		return domain.ErrInternalInvariant.WithDetails("unknown coordinator op " + msg.op)
	}
}

// resolvePath picks, in order: explicit path, filename under the
// coordinator dir, the default filename.
func (c *Coordinator) resolvePath(filename, path string) string {
	if path != "" {
		return path
	}
	if filename != "" {
		return filepath.Join(c.dir, filename)
	}
	return filepath.Join(c.dir, DefaultFilename)
}

func (c *Coordinator) handleWrite(req *writeReq) error {
	path := c.resolvePath(req.filename, req.path)
	size, err := c.container.WriteFile(path, req.access)
	if err != nil {
		// Staged state stays put so the caller can retry.
		return err
	}
	c.metrics.SetFileSize(size)
	c.container.Clear()
	return nil
}

func (c *Coordinator) handleRead(req *readReq) error {
	sourceID := req.sourceID
	if sourceID == (domain.ClientID{}) {
		sourceID = req.clientID
	}

	entry, staged := c.container.GetState(sourceID)
	if !staged {
		if !c.readLimiter.Allow() {
			return domain.ErrRateLimited.WithDetails("snapshot reads throttled")
		}

		path := c.resolvePath(req.filename, req.path)
		state, _, err := ReadFile(path, req.access)
		if err != nil {
			c.logger.Warn("snapshot read failed",
				"path", path,
				"error_code", domain.GetErrorCode(err))
			return err
		}
		c.container.SetState(state)

		entry, staged = c.container.GetState(sourceID)
		if !staged {
			return domain.ErrClientDataMissing.WithDetails("client " + sourceID.String())
		}
	}

	reloader, ok := c.routes.Get(req.clientID)
	if !ok {
		return domain.ErrClientDataMissing.WithDetails("no reloader registered for client " + req.clientID.String())
	}
	if err := reloader.Reload(entry.Keys, entry.Db, entry.Store); err != nil {
		return err
	}

	c.logger.Info("client state reloaded from snapshot",
		"client_id", req.clientID,
		"source_id", sourceID)
	return nil
}
