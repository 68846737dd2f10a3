package orbit

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/leo-topology/internal/logging"
)

// TLE is one parsed two-line element set plus the orbital elements the
// topology layer cares about: inclination and RAAN identify the plane,
// the mean anomaly orders satellites within it.
type TLE struct {
	Name    string
	NORADID int
	Epoch   time.Time

	Line1 string
	Line2 string

	InclinationDeg float64
	RAANDeg        float64
	MeanAnomalyDeg float64
}

// ID returns the stable node identity derived from the catalog number.
func (t TLE) ID() string {
	return fmt.Sprintf("sat-%d", t.NORADID)
}

// ParseCatalog reads 3-line NORAD TLE format from r. Malformed entries
// are skipped with a warning rather than failing the whole catalog.
func ParseCatalog(ctx context.Context, r io.Reader, log logging.Logger) ([]TLE, error) {
	if log == nil {
		log = logging.Noop()
	}

	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE catalog: %w", err)
	}

	var out []TLE
	for i := 0; i+2 < len(lines); {
		name := strings.TrimSpace(lines[i])
		line1 := lines[i+1]
		line2 := lines[i+2]

		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			// Resynchronise on the next plausible triplet.
			log.Warn(ctx, "skipping malformed TLE entry",
				logging.Int("line_index", i), logging.String("name", name))
			i++
			continue
		}

		entry, err := parseEntry(name, line1, line2)
		if err != nil {
			log.Warn(ctx, "skipping unparseable TLE entry",
				logging.String("name", name), logging.String("error", err.Error()))
			i += 3
			continue
		}
		out = append(out, entry)
		i += 3
	}
	return out, nil
}

// LoadCatalogFile parses a TLE catalog from disk.
func LoadCatalogFile(ctx context.Context, path string, log logging.Logger) ([]TLE, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening TLE catalog: %w", err)
	}
	defer f.Close()
	return ParseCatalog(ctx, f, log)
}

// ValidateLines performs basic format validation on a TLE line pair.
// The SGP4 library terminates the process on garbage input, so this
// runs first on everything handed to it.
func ValidateLines(line1, line2 string) error {
	line1 = strings.TrimRight(line1, " ")
	line2 = strings.TrimRight(line2, " ")
	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got %q", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got %q", line2[0])
	}
	return nil
}

func parseEntry(name, line1, line2 string) (TLE, error) {
	if err := ValidateLines(line1, line2); err != nil {
		return TLE{}, err
	}

	noradID, err := strconv.Atoi(strings.TrimSpace(line1[2:7]))
	if err != nil {
		return TLE{}, fmt.Errorf("invalid catalog number %q", line1[2:7])
	}
	epoch, err := parseEpoch(strings.TrimSpace(line1[18:32]))
	if err != nil {
		return TLE{}, err
	}

	// Fixed-column element fields on line 2.
	incl, err := parseColumn(line2, 8, 16, "inclination")
	if err != nil {
		return TLE{}, err
	}
	raan, err := parseColumn(line2, 17, 25, "raan")
	if err != nil {
		return TLE{}, err
	}
	meanAnomaly, err := parseColumn(line2, 43, 51, "mean anomaly")
	if err != nil {
		return TLE{}, err
	}

	return TLE{
		Name:           name,
		NORADID:        noradID,
		Epoch:          epoch,
		Line1:          line1,
		Line2:          line2,
		InclinationDeg: incl,
		RAANDeg:        raan,
		MeanAnomalyDeg: meanAnomaly,
	}, nil
}

func parseColumn(line string, from, to int, what string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(line[from:to]), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, line[from:to])
	}
	return v, nil
}

// parseEpoch converts a TLE epoch in YYDDD.DDDDDDDD form. Years 00-56
// map to the 2000s, 57-99 to the 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}
	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q", s[:2])
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}
	dayOfYear, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q", s[2:])
	}

	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}
