package store

import "github.com/lib/pq"

// pqInt64Array adapts a Go int64 slice to the pq driver's ANY($1) array
// binding, used by the bulk status-transition helpers.
func pqInt64Array(ids []int64) interface{} {
	return pq.Array(ids)
}
