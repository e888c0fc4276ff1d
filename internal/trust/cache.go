package trust

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"
)

type listFile struct {
	Whitelist []string `json:"whitelist"`
}

// Cache holds the set of trusted process names, reloaded from disk only
// when the backing file's modification time changes. The stat runs on
// every lookup; the read and parse only on change. Load failures keep the
// last good set, or an empty set if nothing was ever loaded.
type Cache struct {
	path string
	log  *slog.Logger

	// injectable for tests
	readFile func(string) ([]byte, error)

	mu       sync.RWMutex
	names    map[string]struct{}
	mtime    time.Time
	loaded   bool
	lastWarn string
}

func New(path string, logger *slog.Logger) *Cache {
	return &Cache{
		path:     path,
		log:      logger,
		readFile: os.ReadFile,
		names:    map[string]struct{}{},
	}
}

// IsTrusted reports whether name is on the trust list, refreshing the
// cached set first if the file changed on disk. Matching is exact and
// case-sensitive.
func (c *Cache) IsTrusted(name string) bool {
	c.refresh()
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.names[name]
	return ok
}

func (c *Cache) refresh() {
	fi, err := os.Stat(c.path)
	if err != nil {
		c.mu.Lock()
		c.warnOnce("trust list unavailable, using cached set", err)
		if !c.loaded {
			// nothing ever loaded: the list is empty until the file appears
			c.names = map[string]struct{}{}
			c.loaded = true
		}
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded && fi.ModTime().Equal(c.mtime) {
		return
	}

	b, err := c.readFile(c.path)
	if err != nil {
		c.warnOnce("trust list read failed, keeping cached set", err)
		return
	}
	var lf listFile
	if err := json.Unmarshal(b, &lf); err != nil {
		c.warnOnce("trust list malformed, keeping cached set", err)
		return
	}

	names := make(map[string]struct{}, len(lf.Whitelist))
	for _, n := range lf.Whitelist {
		names[n] = struct{}{}
	}
	c.names = names
	c.mtime = fi.ModTime()
	c.loaded = true
	c.lastWarn = ""
	c.log.Info("trust list loaded", "path", c.path, "entries", len(names))
}

// warnOnce suppresses repeats of the same failure so a missing file does
// not flood the log at the scan interval. Caller holds c.mu.
func (c *Cache) warnOnce(msg string, err error) {
	if c.lastWarn == msg {
		return
	}
	c.lastWarn = msg
	c.log.Warn(msg, "path", c.path, "err", err)
}

