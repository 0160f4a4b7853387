// Package aprs models a decoded APRS text frame. It is intentionally a
// minimal, in-tree decoder: the spec treats the reference APRS parser as an
// external collaborator exposing typed getters over dotted keys, and this
// package implements enough of that boundary (plus a working decoder) to
// drive position, message, telemetry, and status frames through the ingest
// pipeline.
package aprs

import "time"

// PacketType mirrors the classification the external parser is specified to
// produce (spec.md §3).
type PacketType string

const (
	PacketTypePosition     PacketType = "POSITION"
	PacketTypeMessage      PacketType = "MESSAGE"
	PacketTypeTelemetry    PacketType = "TELEMETRY"
	PacketTypeStatus       PacketType = "STATUS"
	PacketTypeCapabilities PacketType = "CAPABILITIES"
	PacketTypePeetLogging  PacketType = "PEETLOGGING"
	PacketTypeWeather      PacketType = "WEATHER"
	PacketTypeDX           PacketType = "DX"
	PacketTypeExperimental PacketType = "EXPERIMENTAL"
	PacketTypeBeacon       PacketType = "BEACON"
	PacketTypeUnknown      PacketType = "UNKNOWN"
)

// Packet is the structured view of one decoded APRS line. It carries the
// hot-path fields as named struct members and everything else (including
// the resolved-ID keys preprocess injects) in a dotted-key extensions bag,
// per DESIGN NOTES' "typed record + extensions map" guidance.
type Packet struct {
	Timestamp  time.Time
	Source     string
	Destination string
	Path       []string // up to 8 digipeater callsigns
	Body       string
	PacketType PacketType

	Latitude  float64
	Longitude float64
	HasPos    bool

	ext map[string]string
}

// NewPacket returns an empty Packet with its extensions bag initialized.
func NewPacket() *Packet {
	return &Packet{ext: make(map[string]string)}
}

// GetString returns the value stored under a dotted key (e.g.
// "aprs.packet.callsign.id") and whether it was present.
func (p *Packet) GetString(key string) (string, bool) {
	v, ok := p.ext[key]
	return v, ok
}

// SetString stores a value under a dotted key. preprocess uses this to
// write back resolved IDs (e.g. "aprs.packet.callsign.id").
func (p *Packet) SetString(key, value string) {
	if p.ext == nil {
		p.ext = make(map[string]string)
	}
	p.ext[key] = value
}

// IsString reports whether a dotted key is present and non-empty, mirroring
// the original parser's isString(...) predicate used throughout preprocess.
func (p *Packet) IsString(key string) bool {
	v, ok := p.ext[key]
	return ok && v != ""
}

const (
	KeyPacketSource              = "aprs.packet.source"
	KeyPacketDestination         = "aprs.packet.destination"
	KeyPositionLatitudeDecimal   = "aprs.packet.position.latitude.decimal"
	KeyPositionLongitudeDecimal  = "aprs.packet.position.longitude.decimal"
	KeyPositionMaidenhead        = "aprs.packet.position.maidenhead"
	KeyPositionPosdup            = "aprs.packet.position.posdup"
	KeyPositionCourse            = "aprs.packet.position.course"
	KeyPositionComment           = "aprs.packet.position.comment"
	KeySymbolTable               = "aprs.packet.symbol.table"
	KeySymbolCode                = "aprs.packet.symbol.code"
	KeyObjectName                = "aprs.packet.object.name"
	KeyMessageTarget             = "aprs.packet.message.target"
	KeyMessageText               = "aprs.packet.message.text"
	KeyMessageID                 = "aprs.packet.message.id"
	KeyMessageAck                = "aprs.packet.message.ack"
	KeyMessageRpl                = "aprs.packet.message.rpl"
	KeyTelemetrySequence         = "aprs.packet.telemetry.sequence"

	KeyCallsignID    = "aprs.packet.callsign.id"
	KeyDestinationID = "aprs.packet.destination.id"
	KeyPacketID      = "aprs.packet.id"
	KeyIconID        = "aprs.packet.icon.id"
	KeyObjectNameID  = "aprs.packet.object.name.id"
	KeyStatusID      = "aprs.packet.status.id"
	KeyMaidenheadID  = "aprs.packet.maidenhead.sql.id"
	KeyMessageTargetID = "aprs.packet.message.target.id"

	KeyPHGPower       = "aprs.packet.phg.power"
	KeyPHGHeight      = "aprs.packet.phg.height"
	KeyPHGGain        = "aprs.packet.phg.gain"
	KeyPHGDirectivity = "aprs.packet.phg.directivity"

	KeyDFRBearing  = "aprs.packet.dfr.bearing"
	KeyDFSStrength = "aprs.packet.dfs.strength"
	KeyAFRSFreq    = "aprs.packet.afrs.frequency"

	KeyWeatherTemperature = "aprs.packet.weather.temperature"
	KeyWeatherHumidity    = "aprs.packet.weather.humidity"
	KeyWeatherPressure    = "aprs.packet.weather.pressure"

	KeyTelemetryControl = "aprs.packet.telemetry.control"

	KeyPathJoinedID = "aprs.packet.path.id"
)

// KeyPathID returns the dotted key for digipeater path slot n (1..8).
func KeyPathID(n int) string {
	switch n {
	case 1:
		return "aprs.packet.path1.id"
	case 2:
		return "aprs.packet.path2.id"
	case 3:
		return "aprs.packet.path3.id"
	case 4:
		return "aprs.packet.path4.id"
	case 5:
		return "aprs.packet.path5.id"
	case 6:
		return "aprs.packet.path6.id"
	case 7:
		return "aprs.packet.path7.id"
	case 8:
		return "aprs.packet.path8.id"
	}
	return ""
}

// IsObject reports whether this packet represents a named object distinct
// from the transmitting station (spec GLOSSARY: "Object").
func (p *Packet) IsObject() bool {
	return p.IsString(KeyObjectName)
}
