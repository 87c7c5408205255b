package cache

import (
	"fmt"
	"hash/fnv"
)

// Key conventions shared by the read and invalidation paths. List and count
// entries are keyed by a hash of the filter-plus-pagination signature so any
// task mutation can purge them with one glob each.
const (
	ListPattern  = "tasks:list:*"
	CountPattern = "tasks:count:*"
)

func TaskKey(id string) string {
	return "task:" + id
}

func ListKey(status string, skip, limit int) string {
	return "tasks:list:" + signature(fmt.Sprintf("%s|%d|%d", status, skip, limit))
}

func CountKey(status string) string {
	return "tasks:count:" + signature(status)
}

func IdempotencyKey(token string) string {
	return "idempotency:" + token
}

func signature(s string) string {
	h := fnv.New64a()
	h.Write([]byte(s))
	return fmt.Sprintf("%x", h.Sum64())
}
