// Package ftp provides an archive.Archive backed by an FTP server.
//
// FTP allows one transfer per control connection, so the client serializes
// operations over a single connection and redials after transport failures.
package ftp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/kbase/cdm-transfers/archive"
	"github.com/kbase/cdm-transfers/resource"
)

// DefaultHost is the NCBI genomes archive.
const DefaultHost = "ftp.ncbi.nlm.nih.gov:21"

type options struct {
	user       string
	password   string
	timeout    time.Duration
	controller *resource.Controller
}

// Option configures the FTP archive.
type Option func(*options)

// WithCredentials sets the login credentials. The default is anonymous
// access.
func WithCredentials(user, password string) Option {
	return func(o *options) {
		o.user = user
		o.password = password
	}
}

// WithTimeout sets the dial timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithController sets the resource controller that paces archive
// operations. Pass one shared with the pipeline to keep a single budget.
func WithController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

// Archive implements archive.Archive over FTP.
type Archive struct {
	host string
	opts options

	mu   sync.Mutex
	conn *ftp.ServerConn
}

// New creates an FTP archive client for the given host:port. An empty host
// selects DefaultHost. The connection is established lazily on first use.
func New(host string, optFns ...Option) *Archive {
	opts := options{
		user:     "anonymous",
		password: "anonymous",
		timeout:  30 * time.Second,
		// Two operations per second keeps the archive happy.
		controller: resource.NewController(resource.Config{ArchiveOpsPerSec: 2}),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&opts)
		}
	}

	if host == "" {
		host = DefaultHost
	}

	return &Archive{host: host, opts: opts}
}

// connection returns the live control connection, dialing if needed.
// The caller must hold a.mu.
func (a *Archive) connection(ctx context.Context) (*ftp.ServerConn, error) {
	if a.conn != nil {
		return a.conn, nil
	}

	conn, err := ftp.Dial(a.host,
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(a.opts.timeout),
	)
	if err != nil {
		return nil, &archive.TransientError{Op: "dial", Path: a.host, Err: err}
	}

	if err := conn.Login(a.opts.user, a.opts.password); err != nil {
		_ = conn.Quit()
		return nil, fmt.Errorf("ftp login %s: %w", a.host, err)
	}

	a.conn = conn
	return conn, nil
}

// drop discards the control connection so the next operation redials.
// The caller must hold a.mu.
func (a *Archive) drop() {
	if a.conn != nil {
		_ = a.conn.Quit()
		a.conn = nil
	}
}

// List returns the entries of a directory, sorted by name.
func (a *Archive) List(ctx context.Context, dir string) ([]archive.Entry, error) {
	if err := a.opts.controller.AwaitTurn(ctx); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	conn, err := a.connection(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := conn.List(dir)
	if err != nil {
		return nil, a.classify("list", dir, err)
	}

	return convertEntries(raw), nil
}

// Fetch opens a file for reading. The control connection stays reserved
// until the returned reader is closed; the caller must close it.
func (a *Archive) Fetch(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := a.opts.controller.AwaitTurn(ctx); err != nil {
		return nil, err
	}

	a.mu.Lock()

	conn, err := a.connection(ctx)
	if err != nil {
		a.mu.Unlock()
		return nil, err
	}

	resp, err := conn.Retr(path)
	if err != nil {
		err = a.classify("fetch", path, err)
		a.mu.Unlock()
		return nil, err
	}

	return &transfer{resp: resp, owner: a}, nil
}

// Close quits the control connection.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil {
		return nil
	}
	err := a.conn.Quit()
	a.conn = nil
	return err
}

// classify maps an FTP failure onto the archive error taxonomy. Transport
// failures invalidate the connection. The caller must hold a.mu.
func (a *Archive) classify(op, path string, err error) error {
	var proto *textproto.Error
	if errors.As(err, &proto) {
		switch {
		case proto.Code == ftp.StatusFileUnavailable:
			return fmt.Errorf("%s %s: %w", op, path, archive.ErrNotFound)
		case proto.Code >= 400 && proto.Code < 500:
			a.drop()
			return &archive.TransientError{Op: op, Path: path, Err: err}
		default:
			return fmt.Errorf("%s %s: %w", op, path, err)
		}
	}

	// Not a server reply: the transport itself failed.
	a.drop()
	return &archive.TransientError{Op: op, Path: path, Err: err}
}

func convertEntries(raw []*ftp.Entry) []archive.Entry {
	entries := make([]archive.Entry, 0, len(raw))
	for _, e := range raw {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		entries = append(entries, archive.Entry{
			Name: e.Name,
			Dir:  e.Type == ftp.EntryTypeFolder,
			Size: int64(e.Size),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// transfer is an open data connection. Closing it releases the control
// connection for the next operation.
type transfer struct {
	resp   *ftp.Response
	owner  *Archive
	closed atomic.Bool
}

func (t *transfer) Read(p []byte) (int, error) {
	return t.resp.Read(p)
}

func (t *transfer) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := t.resp.Close()
	t.owner.mu.Unlock()
	return err
}
