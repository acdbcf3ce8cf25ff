package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Push sends everything in the default registry to a Pushgateway. A batch
// job exits before any scrape could reach it.
func Push(ctx context.Context, url, job string, grouping map[string]string) error {
	if url == "" {
		return nil
	}

	pusher := push.New(url, job).Gatherer(prometheus.DefaultGatherer)
	for name, value := range grouping {
		pusher = pusher.Grouping(name, value)
	}

	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
