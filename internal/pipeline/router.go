package pipeline

import "github.com/fairyhunter13/payments-engine/internal/model"

// Router assigns clients to shards. The assignment depends only on the client
// id and the shard count, which is fixed for the lifetime of a Pipeline, so
// every transaction of a client lands on the same shard.
type Router struct{ shards int }

// NewRouter returns a Router over n shards; n < 1 is treated as 1.
func NewRouter(n int) Router {
	if n < 1 {
		n = 1
	}
	return Router{shards: n}
}

// Route returns the shard index for id.
func (r Router) Route(id model.ClientID) int { return int(id) % r.shards }

// Shards returns the shard count.
func (r Router) Shards() int { return r.shards }
