package transform

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"csspipe/config"
	"csspipe/misc"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS results (
	key      TEXT PRIMARY KEY,
	source   TEXT NOT NULL,
	code     TEXT NOT NULL,
	map      TEXT NOT NULL,
	manifest BLOB,
	created  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS results_source ON results (source);
`

// result is what processing of a single input produces.
type result struct {
	Code     string
	Map      string // source map JSON, empty when not requested
	Manifest []byte // manifest JSON, nil when not requested
}

// cache keeps results keyed by input content and every option which affects
// output. Nil cache is valid and never hits.
type cache struct {
	conn        *sqlite.Conn
	fingerprint []byte
	log         *zap.Logger

	hits, misses int
}

// openCache opens (creating if necessary) the result database. noDirs is
// part of the key since manifests name outputs relative to destination.
func openCache(path string, cfg *config.TransformConfig, noDirs bool, log *zap.Logger) (*cache, error) {
	fp, err := optionsFingerprint(cfg, noDirs)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("unable to create cache directory: %w", err)
	}
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate)
	if err != nil {
		return nil, fmt.Errorf("unable to open cache '%s': %w", path, err)
	}
	if err := sqlitex.ExecuteScript(conn, cacheSchema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to prepare cache schema: %w", err)
	}
	log.Debug("Cache opened", zap.String("path", path))
	return &cache{conn: conn, fingerprint: fp, log: log}, nil
}

// optionsFingerprint serializes everything which influences output so that
// changing any option invalidates cached results.
func optionsFingerprint(cfg *config.TransformConfig, noDirs bool) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to fingerprint options: %w", err)
	}
	return fmt.Appendf(nil, "%s\nnodirs: %t\n%s", misc.GetVersion(), noDirs, data), nil
}

// key derives cache key for source content.
func (c *cache) key(name string, content []byte) string {
	h := blake3.New()
	_, _ = h.Write(c.fingerprint)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// get returns cached result for the input if any.
func (c *cache) get(name string, content []byte) (*result, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	var (
		res   *result
		found bool
	)
	err := sqlitex.Execute(c.conn, `SELECT code, map, manifest FROM results WHERE key = ?`,
		&sqlitex.ExecOptions{
			Args: []any{c.key(name, content)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				res = &result{Code: stmt.ColumnText(0), Map: stmt.ColumnText(1)}
				if n := stmt.ColumnLen(2); n > 0 {
					res.Manifest = make([]byte, n)
					stmt.ColumnBytes(2, res.Manifest)
				}
				return nil
			}})
	if err != nil {
		return nil, false, fmt.Errorf("unable to query cache: %w", err)
	}
	if found {
		c.hits++
	} else {
		c.misses++
	}
	return res, found, nil
}

// put stores result for the input, replacing older results for the same
// source name.
func (c *cache) put(name string, content []byte, res *result) (err error) {
	if c == nil {
		return nil
	}
	defer sqlitex.Save(c.conn)(&err)

	if err := sqlitex.Execute(c.conn, `DELETE FROM results WHERE source = ?`,
		&sqlitex.ExecOptions{Args: []any{name}}); err != nil {
		return fmt.Errorf("unable to update cache: %w", err)
	}
	var manifest any
	if res.Manifest != nil {
		manifest = res.Manifest
	}
	if err := sqlitex.Execute(c.conn,
		`INSERT INTO results (key, source, code, map, manifest, created) VALUES (?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{c.key(name, content), name, res.Code, res.Map, manifest, time.Now().Unix()}}); err != nil {
		return fmt.Errorf("unable to update cache: %w", err)
	}
	return nil
}

// count returns number of cached results.
func (c *cache) count() (int, error) {
	if c == nil {
		return 0, nil
	}
	var n int
	err := sqlitex.Execute(c.conn, `SELECT count(*) FROM results`,
		&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
			n = stmt.ColumnInt(0)
			return nil
		}})
	return n, err
}

func (c *cache) Close() error {
	if c == nil {
		return nil
	}
	c.log.Debug("Cache closed", zap.Int("hits", c.hits), zap.Int("misses", c.misses))
	if c.conn == nil {
		return errors.New("cache is already closed")
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
