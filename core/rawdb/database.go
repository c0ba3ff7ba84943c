// Copyright 2024 The go-trustnet Authors
// This file is part of the go-trustnet library.
//
// The go-trustnet library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-trustnet library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-trustnet library. If not, see <http://www.gnu.org/licenses/>.

package rawdb

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// errNotFound is returned when a requested key is absent from the database.
var errNotFound = errors.New("not found")

// KeyValueReader wraps the Has and Get method of a backing data store.
type KeyValueReader interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
}

// KeyValueWriter wraps the Put and Delete methods of a backing data store.
type KeyValueWriter interface {
	Put(key []byte, value []byte) error
	Delete(key []byte) error
}

// Iterator iterates over a key range in ascending key order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
}

// Database is the full key-value store the registry state commits to.
type Database interface {
	KeyValueReader
	KeyValueWriter
	NewIterator(prefix []byte) Iterator
	Close() error
}

// memoryDatabase is an ephemeral map-backed store, used in tests and for
// nodes running without a data directory.
type memoryDatabase struct {
	mu sync.RWMutex
	kv map[string][]byte
}

// NewMemoryDatabase creates an ephemeral in-memory database.
func NewMemoryDatabase() Database {
	return &memoryDatabase{kv: make(map[string][]byte)}
}

func (db *memoryDatabase) Has(key []byte) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	_, ok := db.kv[string(key)]
	return ok, nil
}

func (db *memoryDatabase) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if v, ok := db.kv[string(key)]; ok {
		return append([]byte(nil), v...), nil
	}
	return nil, errNotFound
}

func (db *memoryDatabase) Put(key, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.kv[string(key)] = append([]byte(nil), value...)
	return nil
}

func (db *memoryDatabase) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.kv, string(key))
	return nil
}

func (db *memoryDatabase) NewIterator(prefix []byte) Iterator {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var keys []string
	for k := range db.kv {
		if strings.HasPrefix(k, string(prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	it := &memoryIterator{index: -1}
	for _, k := range keys {
		it.keys = append(it.keys, []byte(k))
		it.values = append(it.values, append([]byte(nil), db.kv[k]...))
	}
	return it
}

func (db *memoryDatabase) Close() error { return nil }

type memoryIterator struct {
	keys   [][]byte
	values [][]byte
	index  int
}

func (it *memoryIterator) Next() bool {
	it.index++
	return it.index < len(it.keys)
}

func (it *memoryIterator) Key() []byte {
	if it.index < 0 || it.index >= len(it.keys) {
		return nil
	}
	return it.keys[it.index]
}

func (it *memoryIterator) Value() []byte {
	if it.index < 0 || it.index >= len(it.values) {
		return nil
	}
	return it.values[it.index]
}

func (it *memoryIterator) Release() {}

// levelDatabase wraps goleveldb with a read-through cache in front of Get.
type levelDatabase struct {
	db    *leveldb.DB
	cache *fastcache.Cache
}

// NewLevelDBDatabase opens (or creates) a persistent database at the given
// path with a read cache of cacheMB megabytes.
func NewLevelDBDatabase(path string, cacheMB int) (Database, error) {
	if cacheMB < 1 {
		cacheMB = 1
	}
	ldb, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &levelDatabase{
		db:    ldb,
		cache: fastcache.New(cacheMB * 1024 * 1024),
	}, nil
}

func (db *levelDatabase) Has(key []byte) (bool, error) {
	if db.cache.Has(key) {
		return true, nil
	}
	return db.db.Has(key, nil)
}

func (db *levelDatabase) Get(key []byte) ([]byte, error) {
	if v, ok := db.cache.HasGet(nil, key); ok {
		return v, nil
	}
	v, err := db.db.Get(key, nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, errNotFound
		}
		return nil, err
	}
	db.cache.Set(key, v)
	return v, nil
}

func (db *levelDatabase) Put(key, value []byte) error {
	db.cache.Set(key, value)
	return db.db.Put(key, value, nil)
}

func (db *levelDatabase) Delete(key []byte) error {
	db.cache.Del(key)
	return db.db.Delete(key, nil)
}

func (db *levelDatabase) NewIterator(prefix []byte) Iterator {
	return &levelIterator{it: db.db.NewIterator(util.BytesPrefix(prefix), nil)}
}

func (db *levelDatabase) Close() error {
	db.cache.Reset()
	return db.db.Close()
}

type levelIterator struct {
	it iterator
}

// iterator is the subset of goleveldb's iterator the wrapper relies on.
type iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
}

func (it *levelIterator) Next() bool { return it.it.Next() }

// Key copies the underlying buffer; goleveldb reuses it between steps.
func (it *levelIterator) Key() []byte { return append([]byte(nil), it.it.Key()...) }

func (it *levelIterator) Value() []byte { return append([]byte(nil), it.it.Value()...) }

func (it *levelIterator) Release() { it.it.Release() }
