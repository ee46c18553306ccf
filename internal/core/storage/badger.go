package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/dep2p/go-carrier/internal/util/logger"
)

var log = logger.Logger("storage")

// highWaterKey 已预留句柄的上界（不含）
var highWaterKey = []byte("handles/high-water")

// BadgerAllocator 基于 BadgerDB 的持久化句柄分配器
//
// 每次预留 block 个句柄并把新的上界写入磁盘，之后在内存中分配。
// 重启后从持久化的上界继续，崩溃最多浪费一个块，不会复用句柄。
type BadgerAllocator struct {
	db    *badger.DB
	block uint64

	mu     sync.Mutex
	last   uint64 // 最近分配的句柄
	limit  uint64 // 已预留的上界（含）
	closed bool
}

var _ HandleAllocator = (*BadgerAllocator)(nil)

// OpenBadger 打开持久化分配器
//
// 参数：
//   - path: BadgerDB 目录
//   - block: 每次预留的句柄数量
//   - syncWrites: 预留是否同步落盘
func OpenBadger(path string, block uint64, syncWrites bool) (*BadgerAllocator, error) {
	if block == 0 {
		return nil, errors.New("handle block must be positive")
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	opts := badger.DefaultOptions(path).
		WithSyncWrites(syncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{log: log})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	a := &BadgerAllocator{db: db, block: block}
	if err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(highWaterKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if len(v) != 8 || binary.BigEndian.Uint64(v)%handleStep != 0 {
			return ErrCorrupted
		}
		a.last = binary.BigEndian.Uint64(v)
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("load high-water mark: %w", err)
	}
	a.limit = a.last

	log.Debug("句柄分配器已打开", "path", path, "resume", a.last)
	return a, nil
}

// Next 返回一个新的句柄
func (a *BadgerAllocator) Next() (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return 0, ErrClosed
	}
	if a.last > math.MaxUint64-handleStep {
		return 0, ErrHandlesExhausted
	}
	next := a.last + handleStep
	if next > a.limit {
		if err := a.reserve(next); err != nil {
			return 0, err
		}
	}
	a.last = next
	return next, nil
}

// reserve 把上界推进一个块，保证 next 落在已预留范围内
func (a *BadgerAllocator) reserve(next uint64) error {
	span := a.block * handleStep
	limit := next - handleStep + span
	if limit < next {
		limit = math.MaxUint64 - 1
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], limit)
	if err := a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(highWaterKey, buf[:])
	}); err != nil {
		return fmt.Errorf("reserve handle block: %w", err)
	}
	a.limit = limit
	return nil
}

// Close 关闭分配器
func (a *BadgerAllocator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	return a.db.Close()
}

// badgerLogger 适配器：将 slog 适配到 badger.Logger
type badgerLogger struct {
	log *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

// Infof badger 的 info 日志过于频繁，降为 debug
func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}
