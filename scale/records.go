// Package scale turns measured distances between printed targets into
// scale-bar constraints on the reconstruction.
package scale

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Record pairs two marker ids with their measured distance in meters.
type Record struct {
	From     int
	To       int
	Distance float64
}

// ReadRecords parses rows of `from,to,distance` where from and to are
// numeric marker ids and distance is in meters.
func ReadRecords(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scale records: %w", err)
		}
		from, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, fmt.Errorf("scale records row %d: marker id: %w", len(records)+1, err)
		}
		to, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, fmt.Errorf("scale records row %d: marker id: %w", len(records)+1, err)
		}
		distance, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("scale records row %d: distance: %w", len(records)+1, err)
		}
		records = append(records, Record{From: from, To: to, Distance: distance})
	}
	return records, nil
}

// FixedPairs builds records for the sequential pairing convention where
// targets 1-2, 3-4, ... share one measured distance.
func FixedPairs(pairs int, distance float64) []Record {
	records := make([]Record, 0, pairs)
	for i := 0; i < pairs; i++ {
		records = append(records, Record{From: 2*i + 1, To: 2*i + 2, Distance: distance})
	}
	return records
}
