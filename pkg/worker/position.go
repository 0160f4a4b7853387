package worker

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"math"
	"strings"
	"time"

	"github.com/aprsworld/ingestd/pkg/aprs"
	"github.com/aprsworld/ingestd/pkg/store"
)

const earthRadiusMiles = 3958.8

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// haversineMiles returns the great-circle distance between two lat/lon
// pairs in statute miles.
func haversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMiles * c
}

// checkForPositionErrors implements spec.md §4.5's position-error check: a
// new fix is compared against the station's last known fix to derive posdup
// and implied speed, and gross outliers are rejected rather than injected.
// A new position record is always written afterward, win or reject, so the
// next fix compares against this one.
func (w *Worker) checkForPositionErrors(ctx context.Context, p *aprs.Packet, arrivedAt time.Time) (bool, string) {
	comment, _ := p.GetString(aprs.KeyPositionComment)
	commentHash := md5Hex(strings.ToLower(comment))
	now := arrivedAt.Unix()

	prior, found := w.store.GetPositionRecord(ctx, p.Source)
	defer w.store.PutPositionRecord(ctx, p.Source, positionRecordFor(p, now, commentHash))

	if !found {
		return false, ""
	}

	diff := now - prior.CreateTS
	if diff < 0 {
		diff = -diff
	}
	distance := haversineMiles(prior.Latitude, prior.Longitude, p.Latitude, p.Longitude)

	posdup := diff < 1 || distance < 0.1
	if posdup {
		p.SetString(aprs.KeyPositionPosdup, "1")
	}

	elapsedHours := float64(diff) / 3600
	var speed float64
	if elapsedHours > (1.0 / 3600) {
		speed = distance / elapsedHours
	}

	sameComment := commentHash == prior.CommentHash

	if diff < 5 && sameComment {
		return true, "tx < 5 seconds"
	}
	if speed > 500 && sameComment {
		return true, "gps glitch speed > 500"
	}

	return false, ""
}

func positionRecordFor(p *aprs.Packet, now int64, commentHash string) store.PositionRecord {
	return store.PositionRecord{
		Source:      p.Source,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		CreateTS:    now,
		CommentHash: commentHash,
	}
}
