package dbi

import (
	"context"
	"regexp"

	"github.com/jmoiron/sqlx"

	"github.com/aprsworld/ingestd/internal/apperrors"
	"github.com/aprsworld/ingestd/internal/validation"
	"github.com/aprsworld/ingestd/pkg/aprs"
)

// bindOrNull reads key off p and applies the spec.md §4.1 bind idiom: an
// empty or directives-failing value binds SQL NULL instead of poisoning a
// typed column (original_source/src/DBI.cpp:110-122's NULL_VALID_OPTIONPP).
func bindOrNull(p *aprs.Packet, key, directives string) interface{} {
	v, _ := p.GetString(key)
	return validation.BindOrNull(directives, v)
}

// nullIfEmpty binds an already-resolved id (icon_id, name_id) as SQL NULL
// when preprocess had nothing to resolve, rather than an empty string.
func nullIfEmpty(id string) interface{} {
	if id == "" {
		return nil
	}
	return id
}

// bulletinTarget matches the message-target shapes that also upsert
// last_bulletin (spec.md §4.3).
var bulletinTarget = regexp.MustCompile(`^((BLN[0-9A-Z]{1,6})|(NWS-[0-9A-Z]{1,5}))$`)

func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (bool, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.TypeDatabase, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return false, apperrors.Wrap(err, apperrors.TypeDatabase, "transaction failed, rolled back")
	}
	if err := tx.Commit(); err != nil {
		return false, apperrors.Wrap(err, apperrors.TypeDatabase, "failed to commit transaction")
	}
	return true, nil
}

// InjectRaw appends the untouched frame body to raw/raw_meta and upserts
// last_raw/last_raw_meta. It always runs first within a packet's inject
// step (spec.md §4.5 "Inject always writes raw first").
func (d *DBI) InjectRaw(ctx context.Context, packetID string, createTS int64, body string) (bool, error) {
	return withTx(ctx, d.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO last_raw (packet_id, body, create_ts) VALUES (?, ?, ?)
			 ON DUPLICATE KEY UPDATE packet_id = VALUES(packet_id), body = VALUES(body), create_ts = VALUES(create_ts)`,
			packetID, body, createTS); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO last_raw_meta (packet_id, create_ts) VALUES (?, ?)
			 ON DUPLICATE KEY UPDATE packet_id = VALUES(packet_id), create_ts = VALUES(create_ts)`,
			packetID, createTS); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO raw (packet_id, body, create_ts) VALUES (?, ?, ?)`,
			packetID, body, createTS); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO raw_meta (packet_id, create_ts) VALUES (?, ?)`, packetID, createTS)
		return err
	})
}

// PositionInject carries the values InjectPosition needs beyond what is
// already resolved onto the packet's dotted keys.
type PositionInject struct {
	PacketID      string
	CallsignID    string
	CreateTS      int64
	Posdup        bool
	IsObject      bool
	Weather       bool
	IconID        string
	ObjectNameID  string
}

// InjectPosition implements the position upsert/append sequence (spec.md
// §4.3): unconditional last_position/last_position_meta, conditional
// last_phg/last_dfr/last_dfs/last_frequency, conditional append to
// position/position_meta (skipped when posdup or an object), conditional
// last_weather/weather.
func (d *DBI) InjectPosition(ctx context.Context, p *aprs.Packet, in PositionInject) (bool, error) {
	lat := bindOrNull(p, aprs.KeyPositionLatitudeDecimal, "is:float")
	lon := bindOrNull(p, aprs.KeyPositionLongitudeDecimal, "is:float")
	symTable := bindOrNull(p, aprs.KeySymbolTable, "maxlen:2")
	symCode := bindOrNull(p, aprs.KeySymbolCode, "maxlen:2")
	course := bindOrNull(p, aprs.KeyPositionCourse, "is:int")
	comment := bindOrNull(p, aprs.KeyPositionComment, "maxlen:256")

	return withTx(ctx, d.db, func(tx *sqlx.Tx) error {
		stmt := tx.StmtxContext(ctx, d.lastPositionStmt)
		if _, err := stmt.ExecContext(ctx,
			in.PacketID, in.CallsignID, lat, lon, symTable, symCode, course, nil, nil, comment,
			nullIfEmpty(in.IconID), nullIfEmpty(in.ObjectNameID), in.CreateTS); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO last_position_meta (packet_id, callsign_id, create_ts) VALUES (?, ?, ?)
			 ON DUPLICATE KEY UPDATE packet_id = VALUES(packet_id), create_ts = VALUES(create_ts)`,
			in.PacketID, in.CallsignID, in.CreateTS); err != nil {
			return err
		}

		if p.IsString(aprs.KeyPHGPower) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO last_phg (packet_id, callsign_id, power, height, gain, directivity, create_ts) VALUES (?, ?, ?, ?, ?, ?, ?)
				 ON DUPLICATE KEY UPDATE packet_id = VALUES(packet_id), power = VALUES(power), height = VALUES(height), gain = VALUES(gain), directivity = VALUES(directivity), create_ts = VALUES(create_ts)`,
				in.PacketID, in.CallsignID, bindOrNull(p, aprs.KeyPHGPower, "is:int"), bindOrNull(p, aprs.KeyPHGHeight, "is:int"),
				bindOrNull(p, aprs.KeyPHGGain, "is:int"), bindOrNull(p, aprs.KeyPHGDirectivity, "is:int"), in.CreateTS); err != nil {
				return err
			}
		}

		if p.IsString(aprs.KeyDFRBearing) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO last_dfr (packet_id, callsign_id, bearing, create_ts) VALUES (?, ?, ?, ?)
				 ON DUPLICATE KEY UPDATE packet_id = VALUES(packet_id), bearing = VALUES(bearing), create_ts = VALUES(create_ts)`,
				in.PacketID, in.CallsignID, bindOrNull(p, aprs.KeyDFRBearing, "is:int"), in.CreateTS); err != nil {
				return err
			}
		}

		if p.IsString(aprs.KeyDFSStrength) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO last_dfs (packet_id, callsign_id, strength, create_ts) VALUES (?, ?, ?, ?)
				 ON DUPLICATE KEY UPDATE packet_id = VALUES(packet_id), strength = VALUES(strength), create_ts = VALUES(create_ts)`,
				in.PacketID, in.CallsignID, bindOrNull(p, aprs.KeyDFSStrength, "is:int"), in.CreateTS); err != nil {
				return err
			}
		}

		if p.IsString(aprs.KeyAFRSFreq) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO last_frequency (packet_id, callsign_id, frequency, create_ts) VALUES (?, ?, ?, ?)
				 ON DUPLICATE KEY UPDATE packet_id = VALUES(packet_id), frequency = VALUES(frequency), create_ts = VALUES(create_ts)`,
				in.PacketID, in.CallsignID, bindOrNull(p, aprs.KeyAFRSFreq, "is:float"), in.CreateTS); err != nil {
				return err
			}
		}

		if !in.Posdup && !in.IsObject {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO position (packet_id, callsign_id, latitude, longitude, course, comment, create_ts) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				in.PacketID, in.CallsignID, lat, lon, course, comment, in.CreateTS); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO position_meta (packet_id, callsign_id, create_ts) VALUES (?, ?, ?)`,
				in.PacketID, in.CallsignID, in.CreateTS); err != nil {
				return err
			}
		}

		if in.Weather && p.IsString(aprs.KeyWeatherTemperature) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO last_weather (packet_id, callsign_id, temperature, humidity, pressure, create_ts) VALUES (?, ?, ?, ?, ?, ?)
				 ON DUPLICATE KEY UPDATE packet_id = VALUES(packet_id), temperature = VALUES(temperature), humidity = VALUES(humidity), pressure = VALUES(pressure), create_ts = VALUES(create_ts)`,
				in.PacketID, in.CallsignID, bindOrNull(p, aprs.KeyWeatherTemperature, "is:float"),
				bindOrNull(p, aprs.KeyWeatherHumidity, "is:int"), bindOrNull(p, aprs.KeyWeatherPressure, "is:float"), in.CreateTS); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO weather (packet_id, callsign_id, temperature, humidity, pressure, create_ts) VALUES (?, ?, ?, ?, ?, ?)`,
				in.PacketID, in.CallsignID, bindOrNull(p, aprs.KeyWeatherTemperature, "is:float"),
				bindOrNull(p, aprs.KeyWeatherHumidity, "is:int"), bindOrNull(p, aprs.KeyWeatherPressure, "is:float"), in.CreateTS)
			return err
		}
		return nil
	})
}

// MessageInject carries the values InjectMessage needs beyond the packet's
// own dotted keys.
type MessageInject struct {
	PacketID       string
	CallsignID     string
	MessageTargetID string
	CreateTS       int64
}

// InjectMessage implements the message append/upsert sequence (spec.md
// §4.3): append to message, upsert last_message, conditionally upsert
// last_bulletin when the target matches a bulletin address, conditionally
// upsert the relevant telemetry_* control table when the body is a
// telemetry control message (EQNS/UNIT/PARM/BITS).
func (d *DBI) InjectMessage(ctx context.Context, p *aprs.Packet, in MessageInject) (bool, error) {
	rawTarget, _ := p.GetString(aprs.KeyMessageTarget)
	rawText, _ := p.GetString(aprs.KeyMessageText)
	target := bindOrNull(p, aprs.KeyMessageTarget, "maxlen:10")
	text := bindOrNull(p, aprs.KeyMessageText, "maxlen:512")

	return withTx(ctx, d.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO message (packet_id, callsign_id, target, text, create_ts) VALUES (?, ?, ?, ?, ?)`,
			in.PacketID, in.CallsignID, target, text, in.CreateTS); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO last_message (packet_id, callsign_id, target, text, create_ts) VALUES (?, ?, ?, ?, ?)
			 ON DUPLICATE KEY UPDATE packet_id = VALUES(packet_id), target = VALUES(target), text = VALUES(text), create_ts = VALUES(create_ts)`,
			in.PacketID, in.CallsignID, target, text, in.CreateTS); err != nil {
			return err
		}

		if bulletinTarget.MatchString(rawTarget) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO last_bulletin (packet_id, callsign_id, target, text, create_ts) VALUES (?, ?, ?, ?, ?)
				 ON DUPLICATE KEY UPDATE packet_id = VALUES(packet_id), target = VALUES(target), text = VALUES(text), create_ts = VALUES(create_ts)`,
				in.PacketID, in.CallsignID, target, text, in.CreateTS); err != nil {
				return err
			}
		}

		table := telemetryControlTable(rawText)
		if table != "" {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO `+table+` (packet_id, callsign_id, body, create_ts) VALUES (?, ?, ?, ?)
				 ON DUPLICATE KEY UPDATE packet_id = VALUES(packet_id), body = VALUES(body), create_ts = VALUES(create_ts)`,
				in.PacketID, in.CallsignID, text, in.CreateTS); err != nil {
				return err
			}
		}
		return nil
	})
}

// telemetryControlTable returns the telemetry_* table a message body
// targets, or "" if it is not a telemetry control message.
func telemetryControlTable(text string) string {
	switch {
	case hasPrefix(text, "EQNS"):
		return "telemetry_eqns"
	case hasPrefix(text, "UNIT"):
		return "telemetry_unit"
	case hasPrefix(text, "PARM"):
		return "telemetry_parm"
	case hasPrefix(text, "BITS"):
		return "telemetry_bits"
	}
	return ""
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// TelemetryInject carries the values InjectTelemetry needs beyond the
// packet's own dotted keys.
type TelemetryInject struct {
	PacketID   string
	CallsignID string
	CreateTS   int64
}

// InjectTelemetry upserts last_telemetry and appends to telemetry.
func (d *DBI) InjectTelemetry(ctx context.Context, p *aprs.Packet, in TelemetryInject) (bool, error) {
	seq := bindOrNull(p, aprs.KeyTelemetrySequence, "is:int")

	return withTx(ctx, d.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO last_telemetry (packet_id, callsign_id, sequence, create_ts) VALUES (?, ?, ?, ?)
			 ON DUPLICATE KEY UPDATE packet_id = VALUES(packet_id), sequence = VALUES(sequence), create_ts = VALUES(create_ts)`,
			in.PacketID, in.CallsignID, seq, in.CreateTS); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO telemetry (packet_id, callsign_id, sequence, create_ts) VALUES (?, ?, ?, ?)`,
			in.PacketID, in.CallsignID, seq, in.CreateTS)
		return err
	})
}

