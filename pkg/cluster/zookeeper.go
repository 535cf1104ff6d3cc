// Package cluster publishes a running coordinator in ZooKeeper so workers can
// find it without a URL, and keeps a registry of the workers that joined.
package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"

	"clgrpell/pkg/types"
)

const (
	coordinatorNode = "coordinator"
	workersNode     = "workers"
	pollInterval    = 200 * time.Millisecond
)

var ErrCoordinatorRunning = errors.New("clgrpell: a coordinator is already published")

type iZKConn interface {
	Exists(path string) (bool, *zk.Stat, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	Get(path string) ([]byte, *zk.Stat, error)
	Children(path string) ([]string, *zk.Stat, error)
	State() zk.State
	Close()
}

// CoordinatorInfo is the payload of the coordinator's ephemeral node.
type CoordinatorInfo struct {
	RunID string `json:"run_id"`
	URL   string `json:"url"`
}

// Directory is a ZooKeeper session rooted at one path:
//
//	<root>/coordinator       ephemeral, CoordinatorInfo as JSON
//	<root>/workers/<id>      ephemeral, worker host name
type Directory struct {
	conn   iZKConn
	root   string
	logger *slog.Logger
}

// servers: ["zk1:2181", "zk2:2181"]
func NewDirectory(servers []string, root string, sessionTimeout time.Duration, logger *slog.Logger) (*Directory, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("zk connect: %w", err)
	}
	return newDirectory(conn, root, logger), nil
}

func newDirectory(conn iZKConn, root string, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		conn:   conn,
		root:   path.Clean("/" + root),
		logger: logger.With("zk_root", root),
	}
}

func (d *Directory) Close() error {
	d.conn.Close()
	return nil
}

// PublishCoordinator creates the coordinator node. It fails with
// ErrCoordinatorRunning while another coordinator's session holds it.
func (d *Directory) PublishCoordinator(ctx context.Context, info CoordinatorInfo) error {
	if err := d.waitConnected(ctx); err != nil {
		return err
	}
	if err := d.ensurePath(d.root); err != nil {
		return fmt.Errorf("ensure root path: %w", err)
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode coordinator info: %w", err)
	}
	node := path.Join(d.root, coordinatorNode)
	if _, err := d.conn.Create(node, data, zk.FlagEphemeral, zk.WorldACL(zk.PermAll)); err != nil {
		if errors.Is(err, zk.ErrNodeExists) {
			return fmt.Errorf("%w: %s", ErrCoordinatorRunning, node)
		}
		return fmt.Errorf("create coordinator node: %w", err)
	}

	d.logger.Info("coordinator published", "url", info.URL, "run", info.RunID)
	return nil
}

// Coordinator waits until a coordinator is published and returns it.
func (d *Directory) Coordinator(ctx context.Context) (CoordinatorInfo, error) {
	if err := d.waitConnected(ctx); err != nil {
		return CoordinatorInfo{}, err
	}

	node := path.Join(d.root, coordinatorNode)
	for {
		data, _, err := d.conn.Get(node)
		switch {
		case err == nil:
			var info CoordinatorInfo
			if err := json.Unmarshal(data, &info); err != nil {
				return CoordinatorInfo{}, fmt.Errorf("decode coordinator node: %w", err)
			}
			return info, nil
		case !errors.Is(err, zk.ErrNoNode):
			return CoordinatorInfo{}, fmt.Errorf("zk get %s: %w", node, err)
		}

		select {
		case <-ctx.Done():
			return CoordinatorInfo{}, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// RegisterWorker records worker id under the workers node for as long as
// the session lives.
func (d *Directory) RegisterWorker(ctx context.Context, id types.WorkerID, host string) error {
	if err := d.waitConnected(ctx); err != nil {
		return err
	}
	dir := path.Join(d.root, workersNode)
	if err := d.ensurePath(dir); err != nil {
		return fmt.Errorf("ensure workers path: %w", err)
	}

	node := path.Join(dir, strconv.Itoa(int(id)))
	_, err := d.conn.Create(node, []byte(host), zk.FlagEphemeral, zk.WorldACL(zk.PermAll))
	if err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return fmt.Errorf("create ephemeral node: %w", err)
	}

	d.logger.Debug("worker registered", "node", node, "host", host)
	return nil
}

// Workers lists the registered worker ids in ascending order.
func (d *Directory) Workers() ([]types.WorkerID, error) {
	children, _, err := d.conn.Children(path.Join(d.root, workersNode))
	if errors.Is(err, zk.ErrNoNode) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("zk children: %w", err)
	}

	ids := make([]types.WorkerID, 0, len(children))
	for _, c := range children {
		n, err := strconv.Atoi(c)
		if err != nil {
			d.logger.Warn("ignoring foreign worker node", "node", c)
			continue
		}
		ids = append(ids, types.WorkerID(n))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (d *Directory) ensurePath(p string) error {
	parts := strings.Split(p, "/")
	cur := ""
	for _, part := range parts {
		if part == "" {
			continue
		}
		cur = cur + "/" + part
		exists, _, err := d.conn.Exists(cur)
		if err != nil {
			return err
		}
		if !exists {
			_, err = d.conn.Create(cur, nil, 0, zk.WorldACL(zk.PermAll))
			if err != nil && !errors.Is(err, zk.ErrNodeExists) {
				return err
			}
		}
	}
	return nil
}

func (d *Directory) waitConnected(ctx context.Context) error {
	for {
		st := d.conn.State()
		if st == zk.StateConnected || st == zk.StateHasSession {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("zk: not connected, state=%v: %w", st, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}
