package ports

import "context"

// Pinger checks that a MongoDB connection string is reachable.
type Pinger interface {
	Ping(ctx context.Context, uri string) error
}
