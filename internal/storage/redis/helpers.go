package redis

import (
	"sort"

	"github.com/goodtune/pillbox/internal/storage"
)

const keyPrefix = "pillbox:prefs:"

// prefsKey returns the hash holding one namespace.
func prefsKey(namespace string) string {
	return keyPrefix + namespace
}

// stagedBucket buffers writes made inside Update until the callback returns.
type stagedBucket struct {
	snapshot map[string]string
	puts     map[string]string
	deletes  map[string]struct{}
	readOnly bool
}

func newStagedBucket(snapshot map[string]string, readOnly bool) *stagedBucket {
	return &stagedBucket{
		snapshot: snapshot,
		puts:     make(map[string]string),
		deletes:  make(map[string]struct{}),
		readOnly: readOnly,
	}
}

func (b *stagedBucket) Get(key string) ([]byte, error) {
	if v, ok := b.puts[key]; ok {
		return []byte(v), nil
	}
	if _, ok := b.deletes[key]; ok {
		return nil, storage.ErrNotFound
	}
	v, ok := b.snapshot[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return []byte(v), nil
}

func (b *stagedBucket) Put(key string, value []byte) error {
	if b.readOnly {
		return storage.ErrReadOnly
	}
	delete(b.deletes, key)
	b.puts[key] = string(value)
	return nil
}

func (b *stagedBucket) Delete(key string) error {
	if b.readOnly {
		return storage.ErrReadOnly
	}
	if _, err := b.Get(key); err != nil {
		return err
	}
	delete(b.puts, key)
	b.deletes[key] = struct{}{}
	return nil
}

// scriptArgs flattens the staged batch into savePrefsScript arguments.
// Fields are sorted so the script sees a deterministic order.
func (b *stagedBucket) scriptArgs() []interface{} {
	putKeys := make([]string, 0, len(b.puts))
	for k := range b.puts {
		putKeys = append(putKeys, k)
	}
	sort.Strings(putKeys)

	delKeys := make([]string, 0, len(b.deletes))
	for k := range b.deletes {
		delKeys = append(delKeys, k)
	}
	sort.Strings(delKeys)

	args := make([]interface{}, 0, 1+2*len(putKeys)+len(delKeys))
	args = append(args, len(putKeys))
	for _, k := range putKeys {
		args = append(args, k, b.puts[k])
	}
	for _, k := range delKeys {
		args = append(args, k)
	}
	return args
}

func (b *stagedBucket) empty() bool {
	return len(b.puts) == 0 && len(b.deletes) == 0
}
