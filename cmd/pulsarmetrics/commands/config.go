package commands

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/DataDog/pulsar-metrics/cluster"
	"github.com/DataDog/pulsar-metrics/cluster/filelock"
	"github.com/DataDog/pulsar-metrics/cluster/zookeeper"
	"github.com/DataDog/pulsar-metrics/tokenstore"
	"github.com/DataDog/pulsar-metrics/topicmetrics"
	"github.com/DataDog/pulsar-metrics/topicmetrics/azure"

	"github.com/go-zookeeper/zk"
	"github.com/spf13/cobra"
	httptrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/net/http"
)

// params holds the persistent flag values shared by all subcommands. It's
// built once and passed to each component; nothing reads the environment
// afterwards.
type params struct {
	tenantID     string
	clientID     string
	clientSecret string
	resourceID   string
	region       string
	maxAttempts  int
	adminURL     string
	namespace    string
	topicsFile   string
	tokenStore   string
	tokenPath    string
	lock         string
	lockTimeout  time.Duration
	zkAddr       string
	zkPrefix     string
	timeout      time.Duration
	trace        bool
}

func paramsFromCmd(cmd *cobra.Command) (p params) {
	p.tenantID, _ = cmd.Flags().GetString("tenant-id")
	p.clientID, _ = cmd.Flags().GetString("client-id")
	p.clientSecret, _ = cmd.Flags().GetString("client-secret")
	p.resourceID, _ = cmd.Flags().GetString("resource-id")
	p.region, _ = cmd.Flags().GetString("region")
	p.maxAttempts, _ = cmd.Flags().GetInt("max-attempts")
	p.adminURL, _ = cmd.Flags().GetString("admin-url")
	p.namespace, _ = cmd.Flags().GetString("namespace")
	p.topicsFile, _ = cmd.Flags().GetString("topics-file")
	p.tokenStore, _ = cmd.Flags().GetString("token-store")
	p.tokenPath, _ = cmd.Flags().GetString("token-path")
	p.lock, _ = cmd.Flags().GetString("lock")
	p.lockTimeout, _ = cmd.Flags().GetDuration("lock-timeout")
	p.zkAddr, _ = cmd.Flags().GetString("zk-addr")
	p.zkPrefix, _ = cmd.Flags().GetString("zk-prefix")
	p.timeout, _ = cmd.Flags().GetDuration("timeout")
	p.trace, _ = cmd.Flags().GetBool("trace")
	return p
}

// validate sanity checks params.
func (p params) validate() error {
	switch {
	case p.tokenStore != "file" && p.tokenStore != "zookeeper":
		return errors.New("--token-store must be either 'file' or 'zookeeper'")
	case p.lock != "none" && p.lock != "file" && p.lock != "zookeeper":
		return errors.New("--lock must be one of 'none', 'file' or 'zookeeper'")
	case p.lock == "file" && p.tokenStore != "file":
		return errors.New("--lock=file requires --token-store=file")
	case p.maxAttempts < 1:
		return errors.New("--max-attempts must be at least 1")
	case p.timeout <= 0:
		return errors.New("--timeout must be positive")
	}

	return nil
}

func (p params) usesZooKeeper() bool {
	return p.tokenStore == "zookeeper" || p.lock == "zookeeper"
}

// zkPaths returns the token and lock znode paths under the prefix.
func (p params) zkPaths() (token, lock string) {
	prefix := "/" + strings.Trim(p.zkPrefix, "/")
	return path.Join(prefix, "token"), path.Join(prefix, "locks")
}

// httpClient returns an *http.Client with the request timeout, traced if
// tracing is enabled.
func (p params) httpClient() *http.Client {
	c := &http.Client{Timeout: p.timeout}
	if p.trace {
		return httptrace.WrapClient(c)
	}

	return c
}

// azureConfig returns the Azure handler configuration.
func (p params) azureConfig() azure.Config {
	return azure.Config{
		TenantID:     p.tenantID,
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		ResourceID:   p.resourceID,
		Region:       p.region,
		MaxAttempts:  p.maxAttempts,
		Timeout:      p.timeout,
		HTTPClient:   p.httpClient(),
	}
}

// kinds returns the metric kinds from the topics file or the defaults.
func (p params) kinds() ([]topicmetrics.Kind, error) {
	if p.topicsFile == "" {
		return topicmetrics.DefaultKinds(), nil
	}

	return topicmetrics.ReadKindsFile(p.topicsFile)
}

// tokenState holds the token store and refresh lock. close releases any
// underlying connections.
type tokenState struct {
	store tokenstore.Store
	lock  cluster.Lock
	close func()
}

// initTokenState builds the configured token store and lock.
func initTokenState(p params) (*tokenState, error) {
	ts := &tokenState{close: func() {}}

	var conn *zk.Conn
	if p.usesZooKeeper() {
		c, err := zookeeper.Connect(strings.Split(p.zkAddr, ","), 10*time.Second)
		if err != nil {
			return nil, fmt.Errorf("error connecting to ZooKeeper: %w", err)
		}
		conn = c
		ts.close = c.Close
	}

	tokenZnode, lockZnode := p.zkPaths()

	switch p.tokenStore {
	case "zookeeper":
		s, err := tokenstore.NewZooKeeper(conn, tokenZnode)
		if err != nil {
			ts.close()
			return nil, err
		}
		ts.store = s
	default:
		s, err := tokenstore.NewFile(p.tokenPath)
		if err != nil {
			ts.close()
			return nil, err
		}
		ts.store = s
	}

	switch p.lock {
	case "file":
		ts.lock = filelock.New(p.tokenPath + ".lock")
	case "zookeeper":
		ts.lock = zookeeper.NewZooKeeperLock(conn, zookeeper.ZooKeeperLockConfig{Path: lockZnode})
	default:
		ts.lock = cluster.Nop{}
	}

	if p.lockTimeout > 0 {
		ts.lock = cluster.WithTimeout(ts.lock, p.lockTimeout)
	}

	return ts, nil
}
