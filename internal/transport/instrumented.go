package transport

import (
	"context"
	"time"

	"signalbot/internal/domain"
	"signalbot/internal/metrics"
)

// Instrumented counts payloads, failures and send latency in a metrics collector.
type Instrumented struct {
	next      domain.Transport
	collector *metrics.Collector
}

// Instrument wraps next; a nil collector uses metrics.Default.
func Instrument(next domain.Transport, collector *metrics.Collector) *Instrumented {
	if collector == nil {
		collector = metrics.Default
	}
	return &Instrumented{next: next, collector: collector}
}

func (i *Instrumented) Send(ctx context.Context, payload domain.Payload) error {
	start := time.Now()
	err := i.next.Send(ctx, payload)
	i.collector.Histogram(metrics.SendLatencyName, metrics.SendLatencyHelp, metrics.SendLatencyBuckets).
		Observe(time.Since(start).Seconds())

	if err != nil {
		i.collector.Counter(metrics.TransportFailuresName, metrics.TransportFailuresHelp, "").Inc()
		return err
	}
	i.collector.Counter(metrics.PayloadsName, metrics.PayloadsHelp, `kind="`+string(payload.Kind())+`"`).Inc()
	return nil
}

func (i *Instrumented) Close() error { return i.next.Close() }
