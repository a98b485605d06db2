// Package channels delivers run outcomes and alerts to external
// messaging services. Each channel subscribes to the event bus and
// pushes formatted notifications; none of them feed back into runs.
package channels

import "context"

// Channel is one configured notification destination.
type Channel interface {
	// Name identifies the channel in logs and config ("telegram").
	Name() string

	// Start subscribes to the bus and delivers notifications until ctx
	// is canceled or the backing service fails permanently.
	Start(ctx context.Context) error
}
