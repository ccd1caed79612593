package cli

import (
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/paisatax/taxgraph/internal/logging"
	"github.com/paisatax/taxgraph/pkg/adapters/bolt"
	"github.com/paisatax/taxgraph/pkg/adapters/file"
	"github.com/paisatax/taxgraph/pkg/adapters/memory"
	"github.com/paisatax/taxgraph/pkg/adapters/redis"
	"github.com/paisatax/taxgraph/pkg/persistence/middleware"
	"github.com/paisatax/taxgraph/pkg/ports"
)

// Store backends accepted by --store.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreBolt   = "bolt"
	StoreRedis  = "redis"
)

// DefaultStoreDir is where file and bolt stores keep sessions.
const DefaultStoreDir = ".taxgraph"

// Options carries the persistent flags shared by every command.
type Options struct {
	CatalogPath string
	Store       string
	StoreDir    string
	RedisAddr   string
	RedisTTL    time.Duration
	LogLevel    string
	LogFormat   string

	// EncryptionKey is a base64 AES-256 key; when set, node values are
	// sealed before they reach the store.
	EncryptionKey string
	// RedactPatterns mask matching node ids before they are stored.
	RedactPatterns []string
}

// CreateLogger builds the process logger from the --log-* flags.
// Logs go to stderr so stdout stays clean for reports and JSON lines.
func CreateLogger(opts Options) (*slog.Logger, error) {
	if opts.LogLevel == "" {
		return logging.NewNop(), nil
	}
	level, err := logging.ParseLevel(opts.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(opts.LogFormat)
	if err != nil {
		return nil, err
	}
	return logging.New(level, format), nil
}

// Backend is an opened StateStore plus what is needed to release it.
type Backend struct {
	Store  ports.StateStore
	Locker ports.DistributedLocker
	closer io.Closer
}

// Close releases the underlying database or connection.
func (b *Backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// OpenStore opens the backend selected by --store and wraps it with the
// configured redaction and encryption. Redis also provides a distributed
// locker so several servers can share one session namespace.
func OpenStore(opts Options) (*Backend, error) {
	b, err := openBackend(opts)
	if err != nil {
		return nil, err
	}

	var mws []middleware.Middleware
	if len(opts.RedactPatterns) > 0 {
		mw, err := middleware.NewPIIMiddleware(opts.RedactPatterns)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		mws = append(mws, mw)
	}
	if opts.EncryptionKey != "" {
		key, err := base64.StdEncoding.DecodeString(opts.EncryptionKey)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("encryption key is not base64: %w", err)
		}
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		mws = append(mws, mw)
	}
	b.Store = middleware.Chain(b.Store, mws...)
	return b, nil
}

func openBackend(opts Options) (*Backend, error) {
	dir := opts.StoreDir
	if dir == "" {
		dir = DefaultStoreDir
	}

	switch opts.Store {
	case "", StoreFile:
		return &Backend{Store: file.New(filepath.Join(dir, "sessions"))}, nil
	case StoreMemory:
		return &Backend{Store: memory.NewStore()}, nil
	case StoreBolt:
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store dir: %w", err)
		}
		st, err := bolt.Open(filepath.Join(dir, "sessions.db"))
		if err != nil {
			return nil, err
		}
		return &Backend{Store: st, closer: st}, nil
	case StoreRedis:
		if opts.RedisAddr == "" {
			return nil, fmt.Errorf("--redis-addr is required for the redis store")
		}
		var storeOpts []redis.Option
		if opts.RedisTTL > 0 {
			storeOpts = append(storeOpts, redis.WithTTL(opts.RedisTTL))
		}
		st := redis.New(opts.RedisAddr, "", 0, storeOpts...)
		return &Backend{
			Store:  st,
			Locker: redis.NewLocker(st.Client(), redis.DefaultPrefix),
			closer: st.Client(),
		}, nil
	}
	return nil, fmt.Errorf("unknown store %q (want memory, file, bolt or redis)", opts.Store)
}
