package ingest

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
)

// WatchReadiness pings the consumer's Kafka brokers on a fixed interval
// and flips ready to reflect reachability, so cmd/ingest's /readyz probe
// tracks the consumer's actual connectivity rather than just process
// liveness. Separate from the OnPartitionsAssigned/Revoked/Lost callbacks,
// which track group membership rather than broker reachability.
func WatchReadiness(ctx context.Context, client *kgo.Client, ready *atomic.Bool) {
	check := func() {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		if err := client.Ping(pingCtx); err != nil {
			if ready.CompareAndSwap(true, false) {
				slog.Warn("kafka not reachable", "error", err, "brokers", brokerAddrs(pingCtx, client))
			}
			return
		}
		if ready.CompareAndSwap(false, true) {
			slog.Info("kafka connection established", "brokers", brokerAddrs(pingCtx, client))
		}
	}

	check()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

func brokerAddrs(ctx context.Context, client *kgo.Client) []string {
	req := kmsg.NewMetadataRequest()
	md, err := client.RequestCachedMetadata(ctx, &req, 0)
	if err != nil {
		return nil
	}

	addrs := make([]string, 0, len(md.Brokers))
	for _, b := range md.Brokers {
		addrs = append(addrs, net.JoinHostPort(b.Host, strconv.Itoa(int(b.Port))))
	}
	return addrs
}
