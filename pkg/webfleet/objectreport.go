package webfleet

import (
	"context"
	"fmt"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/fleetguard/fleetguard/pkg/fleetdf"
	"github.com/rs/zerolog/log"
)

const positionTimeLayout = "02.01.2006 15:04:05"

// objectReportRow is one line of a showObjectReportExtern CSV response
type objectReportRow struct {
	ObjectNo   string  `csv:"objectno"`
	ObjectName string  `csv:"objectname"`
	Latitude   float64 `csv:"latitude"`
	Longitude  float64 `csv:"longitude"`
	PosTime    string  `csv:"pos_time"`
	Ignition   string  `csv:"ignition"`
}

// FetchPositions pulls the latest object report and converts it into
// position samples, truncated to limit. Rows that fail to parse are
// skipped individually.
func (c *Client) FetchPositions(ctx context.Context, limit int) ([]fleetdf.PositionSample, error) {
	body, err := c.request(ctx, "showObjectReportExtern", map[string]string{})
	if err != nil {
		return nil, err
	}

	var rows []*objectReportRow
	if err := gocsv.UnmarshalBytes(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode object report: %w", err)
	}

	var samples []fleetdf.PositionSample
	for _, row := range rows {
		if limit > 0 && len(samples) >= limit {
			break
		}

		recordedAt, err := time.Parse(positionTimeLayout, row.PosTime)
		if err != nil {
			log.Warn().
				Str("vehicle", row.ObjectNo).
				Str("pos_time", row.PosTime).
				Msg("Skipping object report row with unparseable position time")
			continue
		}

		sample := fleetdf.PositionSample{
			VehicleRef: row.ObjectNo,
			Location:   fleetdf.NewLocation(row.Latitude, row.Longitude),
			RecordedAt: recordedAt.UTC(),
		}

		switch row.Ignition {
		case "1":
			ignition := true
			sample.IgnitionOn = &ignition
		case "0":
			ignition := false
			sample.IgnitionOn = &ignition
		}

		samples = append(samples, sample)
	}

	return samples, nil
}
