package worker

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/aprsworld/ingestd/pkg/aprs"
	"github.com/aprsworld/ingestd/pkg/broker"
)

// encodeEnvelope implements the ";"-separated "key=value" record layout
// spec.md §6 calls out as "the encoding recognized by the external Vars
// utility", used for every broker publish envelope.
func encodeEnvelope(fields map[string]string) string {
	parts := make([]string, 0, len(fields))
	for k, v := range fields {
		if v == "" {
			continue
		}
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ";")
}

// process runs after a packet line has been fully injected: for MESSAGE
// packets it republishes a compact envelope to the notify-aprs-messages
// topic (spec.md §4.5/§6); other packet types return at once. Per-type
// counts are kept by recordResult, not here.
func (w *Worker) process(ctx context.Context, p *aprs.Packet) {
	if p.PacketType != aprs.PacketTypeMessage {
		return
	}

	target, _ := p.GetString(aprs.KeyMessageTarget)
	text, _ := p.GetString(aprs.KeyMessageText)
	packetID, _ := p.GetString(aprs.KeyPacketID)

	fields := map[string]string{
		"ct": strconv.FormatInt(time.Now().UTC().Unix(), 10),
		"sr": p.Source,
		"to": target,
		"ms": text,
		"pa": packetID,
	}
	if id, ok := p.GetString(aprs.KeyMessageID); ok {
		fields["id"] = id
	}
	if ack, ok := p.GetString(aprs.KeyMessageAck); ok {
		fields["ack"] = ack
	}
	if rpl, ok := p.GetString(aprs.KeyMessageRpl); ok {
		fields["rpl"] = rpl
	}
	if _, hasID := p.GetString(aprs.KeyMessageID); hasID {
		if _, hasAck := p.GetString(aprs.KeyMessageAck); !hasAck {
			fields["ao"] = "1"
		}
	}

	if err := w.broker.Publish(ctx, broker.DestNotifyAPRS, encodeEnvelope(fields)); err != nil {
		w.log.WithError(err).Warn("failed to publish message notification")
		if w.metrics != nil {
			w.metrics.BrokerErrorsTotal.WithLabelValues("publish").Inc()
		}
	}
}

// publishError reports a line that failed to parse (spec.md §4.5's
// {packet, error, status, created} error-post shape, status "rejected").
func (w *Worker) publishError(ctx context.Context, line, reason string) {
	w.publishEnvelope(ctx, broker.DestErrors, line, reason, "rejected")
}

// publishDuplicate reports a line suppressed by the duplicate check.
func (w *Worker) publishDuplicate(ctx context.Context, p *aprs.Packet) {
	w.publishEnvelope(ctx, broker.DestDuplicates, p.Body, "", "duplicate")
}

// publishReject reports a line rejected by the position-error check
// (status "position error"); lines that exhaust their retries are
// reported by publishDeferred instead.
func (w *Worker) publishReject(ctx context.Context, p *aprs.Packet, reason string) {
	w.publishEnvelope(ctx, broker.DestRejects, p.Body, reason, "position error")
}

// publishDeferred reports a line that exhausted its retry budget without
// ever resolving (status "deferred").
func (w *Worker) publishDeferred(ctx context.Context, p *aprs.Packet, reason string) {
	w.publishEnvelope(ctx, broker.DestErrors, p.Body, reason, "deferred")
}

func (w *Worker) publishEnvelope(ctx context.Context, destination, packet, errText, status string) {
	fields := map[string]string{
		"packet":  packet,
		"error":   errText,
		"status":  status,
		"created": strconv.FormatInt(time.Now().UTC().Unix(), 10),
	}
	if err := w.broker.Publish(ctx, destination, encodeEnvelope(fields)); err != nil {
		w.log.WithError(err).Warn("failed to publish envelope")
		if w.metrics != nil {
			w.metrics.BrokerErrorsTotal.WithLabelValues("publish").Inc()
		}
	}
}
