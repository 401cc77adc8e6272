package gpsfeed

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/banshee-data/pathframe/internal/units"
)

// Errors reported while parsing NMEA sentences. ErrUnsupportedSentence is
// expected traffic (receivers emit many sentence types); everything else
// means a corrupt or truncated sentence.
var (
	ErrUnsupportedSentence = errors.New("unsupported sentence type")
	ErrBadChecksum         = errors.New("checksum mismatch")
	ErrMalformedSentence   = errors.New("malformed sentence")
)

// Fix is one position solution extracted from a GGA or RMC sentence.
type Fix struct {
	Type     string  `json:"type"`      // "GGA" or "RMC"
	Lat      float64 `json:"lat"`       // decimal degrees, south negative
	Lon      float64 `json:"lon"`       // decimal degrees, west negative
	Quality  int     `json:"quality"`   // GGA fix quality indicator
	SpeedMPS float64 `json:"speed_mps"` // RMC speed over ground
	Valid    bool    `json:"valid"`     // position usable
}

// FormatSentence frames a sentence body with the leading $ and trailing
// checksum: FormatSentence("GPGGA,...") returns "$GPGGA,...*47".
func FormatSentence(body string) string {
	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	return fmt.Sprintf("$%s*%02X", body, sum)
}

// ParseSentence validates the checksum of one NMEA 0183 sentence and
// extracts a Fix from GGA and RMC sentences. Other sentence types return
// ErrUnsupportedSentence.
func ParseSentence(line string) (Fix, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return Fix{}, fmt.Errorf("%w: no leading $", ErrMalformedSentence)
	}

	star := strings.LastIndex(line, "*")
	if star < 0 || star+3 != len(line) {
		return Fix{}, fmt.Errorf("%w: missing checksum", ErrMalformedSentence)
	}

	body := line[1:star]
	want, err := strconv.ParseUint(line[star+1:], 16, 8)
	if err != nil {
		return Fix{}, fmt.Errorf("%w: unreadable checksum %q", ErrMalformedSentence, line[star+1:])
	}

	var sum byte
	for i := 0; i < len(body); i++ {
		sum ^= body[i]
	}
	if sum != byte(want) {
		return Fix{}, fmt.Errorf("%w: computed %02X, sentence says %02X", ErrBadChecksum, sum, want)
	}

	fields := strings.Split(body, ",")
	if len(fields[0]) < 5 {
		return Fix{}, fmt.Errorf("%w: short talker/type field %q", ErrMalformedSentence, fields[0])
	}

	// The two-letter talker prefix (GP, GN, GL, ...) is irrelevant here.
	switch fields[0][len(fields[0])-3:] {
	case "GGA":
		return parseGGA(fields)
	case "RMC":
		return parseRMC(fields)
	default:
		return Fix{}, fmt.Errorf("%w: %s", ErrUnsupportedSentence, fields[0])
	}
}

// parseGGA reads a fix from xxGGA fields:
// [1] time, [2] lat, [3] N/S, [4] lon, [5] E/W, [6] quality, ...
func parseGGA(fields []string) (Fix, error) {
	if len(fields) < 7 {
		return Fix{}, fmt.Errorf("%w: GGA wants 7+ fields, got %d", ErrMalformedSentence, len(fields))
	}

	lat, err := parseCoordinate(fields[2], fields[3])
	if err != nil {
		return Fix{}, err
	}
	lon, err := parseCoordinate(fields[4], fields[5])
	if err != nil {
		return Fix{}, err
	}
	quality, err := strconv.Atoi(fields[6])
	if err != nil {
		return Fix{}, fmt.Errorf("%w: quality %q", ErrMalformedSentence, fields[6])
	}

	return Fix{
		Type:    "GGA",
		Lat:     lat,
		Lon:     lon,
		Quality: quality,
		Valid:   quality > 0,
	}, nil
}

// parseRMC reads a fix from xxRMC fields:
// [1] time, [2] status, [3] lat, [4] N/S, [5] lon, [6] E/W, [7] speed kn, ...
func parseRMC(fields []string) (Fix, error) {
	if len(fields) < 8 {
		return Fix{}, fmt.Errorf("%w: RMC wants 8+ fields, got %d", ErrMalformedSentence, len(fields))
	}

	lat, err := parseCoordinate(fields[3], fields[4])
	if err != nil {
		return Fix{}, err
	}
	lon, err := parseCoordinate(fields[5], fields[6])
	if err != nil {
		return Fix{}, err
	}

	var speedMPS float64
	if fields[7] != "" {
		knots, err := strconv.ParseFloat(fields[7], 64)
		if err != nil {
			return Fix{}, fmt.Errorf("%w: speed %q", ErrMalformedSentence, fields[7])
		}
		speedMPS = units.FromKnots(knots)
	}

	return Fix{
		Type:     "RMC",
		Lat:      lat,
		Lon:      lon,
		SpeedMPS: speedMPS,
		Valid:    fields[2] == "A",
	}, nil
}

// parseCoordinate converts NMEA ddmm.mmmm (or dddmm.mmmm) plus a hemisphere
// letter into signed decimal degrees.
func parseCoordinate(value, hemisphere string) (float64, error) {
	if value == "" || hemisphere == "" {
		return 0, fmt.Errorf("%w: empty coordinate", ErrMalformedSentence)
	}
	dot := strings.Index(value, ".")
	if dot < 3 {
		return 0, fmt.Errorf("%w: coordinate %q", ErrMalformedSentence, value)
	}

	deg, err := strconv.ParseFloat(value[:dot-2], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: coordinate degrees %q", ErrMalformedSentence, value)
	}
	min, err := strconv.ParseFloat(value[dot-2:], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: coordinate minutes %q", ErrMalformedSentence, value)
	}

	coord := deg + min/60
	switch hemisphere {
	case "N", "E":
		return coord, nil
	case "S", "W":
		return -coord, nil
	default:
		return 0, fmt.Errorf("%w: hemisphere %q", ErrMalformedSentence, hemisphere)
	}
}
