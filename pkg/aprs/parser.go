package aprs

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aprsworld/ingestd/internal/apperrors"
)

// Parse decodes one "<unix_ts> <raw_aprs_text>" line (spec.md §3, §6) into a
// Packet. arrivedAt is the time the enclosing broker frame was received and
// is used as a fallback Timestamp when the line carries none of its own.
func Parse(line string, arrivedAt time.Time) (*Packet, error) {
	tsField, rest, ok := strings.Cut(strings.TrimSpace(line), " ")
	if !ok {
		return nil, apperrors.Newf(apperrors.TypeParse, "line has no timestamp field: %q", line)
	}

	ts := arrivedAt
	if secs, err := strconv.ParseInt(tsField, 10, 64); err == nil {
		ts = time.Unix(secs, 0).UTC()
	}

	raw := rest
	source, headerAndBody, ok := strings.Cut(raw, ">")
	if !ok || source == "" {
		return nil, apperrors.Newf(apperrors.TypeParse, "missing source callsign in %q", raw)
	}

	header, body, ok := strings.Cut(headerAndBody, ":")
	if !ok {
		return nil, apperrors.Newf(apperrors.TypeParse, "missing ':' header/body separator in %q", raw)
	}

	pathFields := strings.Split(header, ",")
	if len(pathFields) == 0 || pathFields[0] == "" {
		return nil, apperrors.Newf(apperrors.TypeParse, "missing destination in %q", raw)
	}
	dest := pathFields[0]
	path := pathFields[1:]
	if len(path) > 8 {
		path = path[:8]
	}

	p := NewPacket()
	p.Timestamp = ts
	p.Source = source
	p.Destination = dest
	p.Path = path
	p.Body = body
	p.SetString(KeyPacketSource, source)
	p.SetString(KeyPacketDestination, dest)

	if body == "" {
		return nil, apperrors.Newf(apperrors.TypeParse, "empty payload in %q", raw)
	}

	switch body[0] {
	case '!', '=':
		return parsePosition(p, body[1:], false)
	case '/', '@':
		return parsePosition(p, body[1:], true)
	case ';':
		return parseObject(p, body[1:])
	case ':':
		return parseMessage(p, body[1:])
	case 'T':
		return parseTelemetry(p, body[1:])
	case '>':
		p.PacketType = PacketTypeStatus
		p.SetString("aprs.packet.status.text", body[1:])
		return p, nil
	default:
		p.PacketType = PacketTypeUnknown
		return p, nil
	}
}

// parsePosition decodes "ddmm.mmN/dddmm.mmW<sym><comment>", optionally
// preceded by a 7-byte DHM/HMS timestamp when withTimestamp is set.
func parsePosition(p *Packet, payload string, withTimestamp bool) (*Packet, error) {
	p.PacketType = PacketTypePosition

	if withTimestamp {
		if len(payload) < 8 {
			return nil, apperrors.Newf(apperrors.TypeParse, "position payload too short for timestamp: %q", payload)
		}
		payload = payload[7:]
	}

	if len(payload) < 19 {
		return nil, apperrors.Newf(apperrors.TypeParse, "position payload too short: %q", payload)
	}

	latStr := payload[0:7]  // ddmm.mm
	latHemi := payload[7]   // N/S
	symTable := payload[8]
	lonStr := payload[9:17] // dddmm.mm
	lonHemi := payload[17]
	symCode := payload[18]
	rest := ""
	if len(payload) > 19 {
		rest = payload[19:]
	}

	lat, err := decodeLatLon(latStr, 2)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.TypeParse, "invalid latitude %q", latStr)
	}
	if latHemi == 'S' || latHemi == 's' {
		lat = -lat
	}

	lon, err := decodeLatLon(lonStr, 3)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.TypeParse, "invalid longitude %q", lonStr)
	}
	if lonHemi == 'W' || lonHemi == 'w' {
		lon = -lon
	}

	p.Latitude = lat
	p.Longitude = lon
	p.HasPos = true
	p.SetString(KeyPositionLatitudeDecimal, strconv.FormatFloat(lat, 'f', 6, 64))
	p.SetString(KeyPositionLongitudeDecimal, strconv.FormatFloat(lon, 'f', 6, 64))
	p.SetString(KeySymbolTable, string(symTable))
	p.SetString(KeySymbolCode, string(symCode))
	p.SetString(KeyPositionMaidenhead, maidenhead(lat, lon))
	p.SetString(KeyPositionComment, rest)

	// PHG extension: "PHGabcd"
	if idx := strings.Index(rest, "PHG"); idx >= 0 && idx+7 <= len(rest) {
		p.SetString(KeyPHGPower, rest[idx+3:idx+4])
		p.SetString(KeyPHGHeight, rest[idx+4:idx+5])
		p.SetString(KeyPHGGain, rest[idx+5:idx+6])
		p.SetString(KeyPHGDirectivity, rest[idx+6:idx+7])
	}

	return p, nil
}

func decodeLatLon(s string, degreeDigits int) (float64, error) {
	if len(s) < degreeDigits+1 {
		return 0, apperrors.Newf(apperrors.TypeParse, "coordinate field too short: %q", s)
	}
	deg, err := strconv.Atoi(s[0:degreeDigits])
	if err != nil {
		return 0, err
	}
	min, err := strconv.ParseFloat(s[degreeDigits:], 64)
	if err != nil {
		return 0, err
	}
	return float64(deg) + min/60.0, nil
}

// maidenhead computes a 4-character grid-square locator for lat/lon,
// following the standard 18x18 field / 10x10 square encoding.
func maidenhead(lat, lon float64) string {
	lon += 180
	lat += 90

	fieldLon := byte('A' + int(lon/20))
	fieldLat := byte('A' + int(lat/10))

	squareLon := int(lon/2) % 10
	squareLat := int(lat) % 10

	return fmt.Sprintf("%c%c%d%d", fieldLon, fieldLat, squareLon, squareLat)
}

func parseObject(p *Packet, payload string) (*Packet, error) {
	if len(payload) < 10 {
		return nil, apperrors.Newf(apperrors.TypeParse, "object payload too short: %q", payload)
	}
	name := strings.TrimRight(payload[0:9], " ")
	liveFlag := payload[9]
	p.SetString(KeyObjectName, name)

	rest := payload[10:]
	if liveFlag != '*' {
		p.PacketType = PacketTypeUnknown
		return p, nil
	}
	return parsePosition(p, rest, true)
}

// parseMessage decodes ":ADDRESSEE :text{msgid" per spec §4.5/§4.3.
func parseMessage(p *Packet, payload string) (*Packet, error) {
	p.PacketType = PacketTypeMessage

	if len(payload) < 10 || payload[9] != ':' {
		return nil, apperrors.Newf(apperrors.TypeParse, "malformed message addressee in %q", payload)
	}
	target := strings.TrimRight(payload[0:9], " ")
	text := payload[10:]

	var msgID string
	if idx := strings.Index(text, "{"); idx >= 0 {
		msgID = text[idx+1:]
		text = text[:idx]
	}

	p.SetString(KeyMessageTarget, target)
	p.SetString(KeyMessageText, text)
	if msgID != "" {
		p.SetString(KeyMessageID, msgID)
	}
	if strings.HasPrefix(text, "ack") {
		p.SetString(KeyMessageAck, strings.TrimPrefix(text, "ack"))
	}
	if strings.HasPrefix(text, "rej") {
		p.SetString(KeyMessageRpl, strings.TrimPrefix(text, "rej"))
	}

	return p, nil
}

// parseTelemetry decodes "T#seq,a1,a2,a3,a4,a5,b1b2b3b4b5b6b7b8".
func parseTelemetry(p *Packet, payload string) (*Packet, error) {
	p.PacketType = PacketTypeTelemetry
	if !strings.HasPrefix(payload, "#") {
		return nil, apperrors.Newf(apperrors.TypeParse, "malformed telemetry payload: %q", payload)
	}
	fields := strings.Split(payload[1:], ",")
	if len(fields) == 0 {
		return nil, apperrors.Newf(apperrors.TypeParse, "empty telemetry payload")
	}
	p.SetString(KeyTelemetrySequence, fields[0])
	for i, f := range fields[1:] {
		p.SetString(fmt.Sprintf("aprs.packet.telemetry.val%d", i+1), f)
	}
	return p, nil
}
