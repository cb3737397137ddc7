package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/wbr-monitor/internal/domain"
)

// DefaultGoalOpenRate applies when the input has no goal column at all.
const DefaultGoalOpenRate = 0.20

// Options controls how a CSV is read.
type Options struct {
	// DefaultGoalOpenRate fills Goal_Open_Rate when the column is absent.
	// Nil means DefaultGoalOpenRate; an explicit 0 is kept.
	DefaultGoalOpenRate *float64
}

func (o Options) goal() float64 {
	if o.DefaultGoalOpenRate == nil {
		return DefaultGoalOpenRate
	}
	return *o.DefaultGoalOpenRate
}

// Dataset is the parsed content of one input file.
type Dataset struct {
	Records []domain.CampaignRecord
	// Annotations holds the non-blank narrative per row when the input
	// carries Root_Cause_Hypothesis or Path_to_Green columns.
	Annotations    map[domain.RowID]domain.Annotation
	HasAnnotations bool
	// GoalDefaulted is set when Goal_Open_Rate was absent from the header.
	GoalDefaulted bool
}

var dateLayouts = []string{
	domain.DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"01/02/2006",
}

// ReadFile reads a campaign CSV from the local filesystem.
func ReadFile(path string, opts Options) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()
	return ReadCSV(file, opts)
}

// ReadCSV parses campaign records from r. Blank lines are skipped; any other
// malformed row aborts the read.
func ReadCSV(r io.Reader, opts Options) (*Dataset, error) {
	reader := newReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, missingColumn(FieldDate)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	mapping := mapColumns(header)
	if err := mapping.require(FieldDate, FieldCampaignName, FieldEmailsSent, FieldOpens); err != nil {
		return nil, err
	}

	ds := &Dataset{
		HasAnnotations: mapping.has(FieldRootCauseHypothesis) || mapping.has(FieldPathToGreen),
		GoalDefaulted:  !mapping.has(FieldGoalOpenRate),
	}
	if ds.HasAnnotations {
		ds.Annotations = make(map[domain.RowID]domain.Annotation)
	}

	for n := 1; ; n++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", n, err)
		}
		if blankRow(row) {
			n--
			continue
		}

		rec, err := parseRecord(row, n, mapping, opts)
		if err != nil {
			return nil, err
		}
		ds.Records = append(ds.Records, rec)

		if ds.HasAnnotations {
			a := domain.Annotation{
				RootCauseHypothesis: mapping.value(row, FieldRootCauseHypothesis),
				PathToGreen:         mapping.value(row, FieldPathToGreen),
			}
			// Blank cells must not overwrite narrative entered since the last load.
			if !a.IsEmpty() {
				ds.Annotations[rec.ID()] = a
			}
		}
	}
	return ds, nil
}

// ReadReport reads the narrative back out of an exported report. Only Date,
// Campaign_Name and the two narrative columns are consulted.
func ReadReport(r io.Reader) (map[domain.RowID]domain.Annotation, error) {
	reader := newReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, missingColumn(FieldDate)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	mapping := mapColumns(header)
	if err := mapping.require(FieldDate, FieldCampaignName); err != nil {
		return nil, err
	}
	if !mapping.has(FieldRootCauseHypothesis) && !mapping.has(FieldPathToGreen) {
		return nil, missingColumn(FieldRootCauseHypothesis)
	}

	out := make(map[domain.RowID]domain.Annotation)
	for n := 1; ; n++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", n, err)
		}
		if blankRow(row) {
			n--
			continue
		}
		date, err := parseDate(mapping.value(row, FieldDate), n)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSpace(mapping.value(row, FieldCampaignName))
		if name == "" {
			return nil, badValue(FieldCampaignName, n, "campaign name is empty")
		}
		out[domain.NewRowID(date, name)] = domain.Annotation{
			RootCauseHypothesis: mapping.value(row, FieldRootCauseHypothesis),
			PathToGreen:         mapping.value(row, FieldPathToGreen),
		}
	}
	return out, nil
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1
	return reader
}

func parseRecord(row []string, n int, m columnMapping, opts Options) (domain.CampaignRecord, error) {
	var rec domain.CampaignRecord

	date, err := parseDate(m.value(row, FieldDate), n)
	if err != nil {
		return rec, err
	}
	rec.Date = date

	rec.CampaignName = strings.TrimSpace(m.value(row, FieldCampaignName))
	if rec.CampaignName == "" {
		return rec, badValue(FieldCampaignName, n, "campaign name is empty")
	}

	if rec.EmailsSent, err = parseCount(m.value(row, FieldEmailsSent), FieldEmailsSent, n); err != nil {
		return rec, err
	}
	if rec.Opens, err = parseCount(m.value(row, FieldOpens), FieldOpens, n); err != nil {
		return rec, err
	}

	rec.GoalOpenRate = opts.goal()
	if m.has(FieldGoalOpenRate) {
		if rec.GoalOpenRate, err = parseRate(m.value(row, FieldGoalOpenRate), n); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// parseDate accepts the supported layouts and normalizes to midnight UTC of
// the UTC calendar day.
func parseDate(raw string, n int) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, badValue(FieldDate, n, "date is empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, badValue(FieldDate, n, "unrecognized date %q", raw)
}

// parseCount reads a non-negative integer. Thousands separators and an
// integral decimal form ("1500.0") are accepted.
func parseCount(raw string, col Field, n int) (int64, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return 0, badValue(col, n, "value is empty")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
			return 0, badValue(col, n, "not an integer: %q", raw)
		}
		v = int64(f)
	}
	if v < 0 {
		return 0, badValue(col, n, "must be non-negative, got %d", v)
	}
	return v, nil
}

// parseRate reads a goal as a fraction in [0,1]. "20%" is read as 0.20.
func parseRate(raw string, n int) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, badValue(FieldGoalOpenRate, n, "value is empty")
	}
	pct := strings.HasSuffix(raw, "%")
	v, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, badValue(FieldGoalOpenRate, n, "not a number: %q", raw)
	}
	if pct {
		v /= 100
	}
	if v < 0 || v > 1 {
		return 0, badValue(FieldGoalOpenRate, n, "must be within [0,1], got %g", v)
	}
	return v, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// stripBOM wraps a reader to strip a UTF-8 BOM if present.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := io.ReadFull(r, buf)
	if err != nil || n < 3 {
		return io.MultiReader(strings.NewReader(string(buf[:n])), r)
	}
	if buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
