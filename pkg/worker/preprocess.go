package worker

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/aprsworld/ingestd/pkg/aprs"
	"github.com/aprsworld/ingestd/pkg/dbi"
)

// preprocessAndInject implements spec.md §4.5's preprocess+inject
// sequence: resolve every ID preprocess needs, in the documented order,
// then write raw and the type-specific tables. Any failure returns
// (false, reason) so the caller marks the Result Deferred and retries.
func (w *Worker) preprocessAndInject(ctx context.Context, p *aprs.Packet, arrivedAt time.Time) (bool, string) {
	callsignID, ok := w.store.GetCallsignID(ctx, p.Source)
	if !ok {
		return false, "could not get callsign id"
	}
	p.SetString(aprs.KeyCallsignID, callsignID)

	symTable, hasSymTable := p.GetString(aprs.KeySymbolTable)
	symCode, hasSymCode := p.GetString(aprs.KeySymbolCode)
	if hasSymTable && hasSymCode {
		course := coursef(p)
		iconID, _, ok := w.store.GetIconID(ctx, symTable, symCode, course)
		if !ok {
			return false, "could not get icon id"
		}
		p.SetString(aprs.KeyIconID, iconID)
	}

	packetID, err := w.db.InsertPacket(ctx, arrivedAt.Unix())
	if err != nil {
		return false, "could not get packet id"
	}
	p.SetString(aprs.KeyPacketID, packetID)

	pathJoined := strings.Join(p.Path, ",")
	pathID, ok := w.store.GetPathID(ctx, pathJoined)
	if !ok {
		return false, "could not get path id"
	}
	p.SetString(aprs.KeyPathJoinedID, pathID)

	destinationID, ok := w.store.GetDestinationID(ctx, p.Destination)
	if !ok {
		return false, "could not get destination id"
	}
	p.SetString(aprs.KeyDestinationID, destinationID)

	if p.IsObject() {
		name, _ := p.GetString(aprs.KeyObjectName)
		objectNameID, ok := w.store.GetObjectNameID(ctx, name)
		if !ok {
			return false, "could not get object name id"
		}
		p.SetString(aprs.KeyObjectNameID, objectNameID)
	}

	if p.PacketType == aprs.PacketTypePosition {
		statusID, ok := w.store.GetStatusID(ctx, "")
		if !ok {
			return false, "could not get status id"
		}
		p.SetString(aprs.KeyStatusID, statusID)

		if locator, hasLocator := p.GetString(aprs.KeyPositionMaidenhead); hasLocator {
			maidenheadID, ok := w.store.GetMaidenheadID(ctx, locator)
			if !ok {
				return false, "could not get maidenhead id"
			}
			p.SetString(aprs.KeyMaidenheadID, maidenheadID)
		}
	}

	if p.PacketType == aprs.PacketTypeMessage {
		target, _ := p.GetString(aprs.KeyMessageTarget)
		targetID, ok := w.store.GetCallsignID(ctx, target)
		if !ok {
			return false, "could not get message target id"
		}
		p.SetString(aprs.KeyMessageTargetID, targetID)
	}

	for slot := 1; slot <= 8; slot++ {
		var name string
		if slot-1 < len(p.Path) {
			name = p.Path[slot-1]
		}
		if name == "" {
			p.SetString(aprs.KeyPathID(slot), "0")
			continue
		}
		digiID, ok := w.store.GetDigiID(ctx, name)
		if !ok {
			return false, "could not get digi id for path slot " + strconv.Itoa(slot)
		}
		p.SetString(aprs.KeyPathID(slot), digiID)
	}

	return w.inject(ctx, p, packetID, callsignID, arrivedAt)
}

// inject writes raw first, then the type-specific path, per spec.md §4.5
// ("Inject always writes raw first").
func (w *Worker) inject(ctx context.Context, p *aprs.Packet, packetID, callsignID string, arrivedAt time.Time) (bool, string) {
	start := time.Now()
	if w.metrics != nil {
		defer func() {
			w.metrics.InjectDuration.WithLabelValues(string(p.PacketType)).Observe(time.Since(start).Seconds())
		}()
	}

	ts := arrivedAt.Unix()

	if ok, err := w.db.InjectRaw(ctx, packetID, ts, p.Body); err != nil || !ok {
		return false, "could not inject raw"
	}

	switch p.PacketType {
	case aprs.PacketTypePosition:
		return w.injectPosition(ctx, p, packetID, callsignID, ts)
	case aprs.PacketTypeMessage:
		targetID, _ := p.GetString(aprs.KeyMessageTargetID)
		ok, err := w.db.InjectMessage(ctx, p, dbi.MessageInject{
			PacketID: packetID, CallsignID: callsignID, MessageTargetID: targetID, CreateTS: ts,
		})
		if err != nil || !ok {
			return false, "could not inject message"
		}
	case aprs.PacketTypeTelemetry:
		ok, err := w.db.InjectTelemetry(ctx, p, dbi.TelemetryInject{PacketID: packetID, CallsignID: callsignID, CreateTS: ts})
		if err != nil || !ok {
			return false, "could not inject telemetry"
		}
	}

	return true, ""
}

func (w *Worker) injectPosition(ctx context.Context, p *aprs.Packet, packetID, callsignID string, ts int64) (bool, string) {
	posdup := p.IsString(aprs.KeyPositionPosdup)
	iconID, _ := p.GetString(aprs.KeyIconID)
	objectNameID, _ := p.GetString(aprs.KeyObjectNameID)
	ok, err := w.db.InjectPosition(ctx, p, dbi.PositionInject{
		PacketID:     packetID,
		CallsignID:   callsignID,
		CreateTS:     ts,
		Posdup:       posdup,
		IsObject:     p.IsObject(),
		Weather:      p.IsString(aprs.KeyWeatherTemperature),
		IconID:       iconID,
		ObjectNameID: objectNameID,
	})
	if err != nil || !ok {
		return false, "could not inject position"
	}

	if locator, has := p.GetString(aprs.KeyPositionMaidenhead); has {
		w.locatorsSeen[locator] = struct{}{}
		w.store.AppendLastPosition(ctx, locator, p.Source, ts)
	}

	if !posdup && !p.IsObject() {
		w.store.AppendPosition(ctx, callsignID, p.Latitude, p.Longitude, ts)
	}

	return true, ""
}

func coursef(p *aprs.Packet) float64 {
	v, ok := p.GetString(aprs.KeyPositionCourse)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}
