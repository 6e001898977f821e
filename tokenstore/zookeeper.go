package tokenstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-zookeeper/zk"
)

// ZKClient is the subset of *zk.Conn used by the ZooKeeper store.
type ZKClient interface {
	Get(path string) ([]byte, *zk.Stat, error)
	Set(path string, data []byte, version int32) (*zk.Stat, error)
	Exists(path string) (bool, *zk.Stat, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
}

// ZooKeeper is a Store backed by a znode, letting job instances on different
// hosts share one cached token.
type ZooKeeper struct {
	c    ZKClient
	path string
}

// NewZooKeeper returns a *ZooKeeper store holding the token at path.
func NewZooKeeper(c ZKClient, path string) (*ZooKeeper, error) {
	if path == "" || !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("invalid znode path %q", path)
	}

	return &ZooKeeper{c: c, path: path}, nil
}

// Read returns the znode data, creating the znode (and its parents) if it
// doesn't exist.
func (z *ZooKeeper) Read() (string, error) {
	if err := z.ensureExists(); err != nil {
		return "", err
	}

	data, _, err := z.c.Get(z.path)
	if err != nil {
		return "", fmt.Errorf("error getting token znode: %w", err)
	}

	return string(data), nil
}

// Write overwrites the znode data with token.
func (z *ZooKeeper) Write(token string) error {
	if err := z.ensureExists(); err != nil {
		return err
	}

	// Version -1 matches any version.
	if _, err := z.c.Set(z.path, []byte(token), -1); err != nil {
		return fmt.Errorf("error setting token znode: %w", err)
	}

	return nil
}

// ensureExists creates each node along the store path. For "/a/b/token"
// that's "/a", "/a/b" and "/a/b/token".
func (z *ZooKeeper) ensureExists() error {
	nodes := strings.Split(strings.Trim(z.path, "/"), "/")

	for i := range nodes {
		p := "/" + strings.Join(nodes[:i+1], "/")

		exists, _, err := z.c.Exists(p)
		if err != nil {
			return fmt.Errorf("error checking znode %s: %w", p, err)
		}

		if exists {
			continue
		}

		_, err = z.c.Create(p, nil, 0, zk.WorldACL(zk.PermAll))
		// Another instance may have beaten us to it.
		if err != nil && !errors.Is(err, zk.ErrNodeExists) {
			return fmt.Errorf("error creating znode %s: %w", p, err)
		}
	}

	return nil
}
