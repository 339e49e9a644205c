package quotes

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/cryptowallet/internal/modules/returns"
	"github.com/xuri/excelize/v2"
)

// ErrNoPriceColumns is returned when a header has no recognizable date or price column.
var ErrNoPriceColumns = errors.New("no date and price columns found")

var (
	dateHeaders  = []string{"data", "date"}
	priceHeaders = []string{"último", "ultimo", "fechamento", "close", "price", "adj close"}

	// Headers exported with Portuguese locale settings use decimal commas and day-first dates.
	ptHeaders = map[string]bool{"data": true, "último": true, "ultimo": true, "fechamento": true}
)

type layout struct {
	dateCol  int
	priceCol int
	ptBR     bool
}

// ParseCSV reads a daily quote export. The first row is the header; rows are returned in
// file order.
func ParseCSV(r io.Reader) ([]returns.PricePoint, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return parseRows(rows)
}

// ParseXLSX reads the first sheet of a workbook laid out like the CSV exports.
func ParseXLSX(path string) ([]returns.PricePoint, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in %s", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return parseRows(rows)
}

func parseRows(rows [][]string) ([]returns.PricePoint, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty quote file")
	}

	l, err := detectLayout(rows[0])
	if err != nil {
		return nil, err
	}

	points := make([]returns.PricePoint, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		if len(row) <= l.dateCol || len(row) <= l.priceCol {
			return nil, fmt.Errorf("line %d: expected at least %d fields, got %d",
				i+2, max(l.dateCol, l.priceCol)+1, len(row))
		}

		date, err := parseDate(row[l.dateCol], l.ptBR)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		price, err := parseNumber(row[l.priceCol], l.ptBR)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		points = append(points, returns.PricePoint{Date: date, Close: price})
	}
	return points, nil
}

func detectLayout(header []string) (layout, error) {
	l := layout{dateCol: -1, priceCol: -1}
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = normalizeHeader(h)
	}

	for _, want := range dateHeaders {
		if i := indexOf(names, want); i >= 0 {
			l.dateCol = i
			l.ptBR = ptHeaders[want]
			break
		}
	}
	for _, want := range priceHeaders {
		if i := indexOf(names, want); i >= 0 {
			l.priceCol = i
			l.ptBR = l.ptBR || ptHeaders[want]
			break
		}
	}
	if l.dateCol < 0 || l.priceCol < 0 {
		return l, fmt.Errorf("%w in header %v", ErrNoPriceColumns, header)
	}
	return l, nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.Trim(strings.TrimSpace(h), `"`)
	return strings.ToLower(h)
}

func indexOf(names []string, want string) int {
	for i, n := range names {
		if n == want {
			return i
		}
	}
	return -1
}

func blank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

var (
	ptDateLayouts = []string{"02.01.2006", "2006-01-02", "02/01/2006", "02-01-2006"}
	enDateLayouts = []string{"2006-01-02", "01/02/2006", "Jan 02, 2006", "01-02-2006", "02.01.2006"}
)

// parseDate returns the date as YYYY-MM-DD.
func parseDate(s string, ptBR bool) (string, error) {
	s = strings.TrimSpace(s)
	layouts := enDateLayouts
	if ptBR {
		layouts = ptDateLayouts
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", s)
}

// ptGrouped matches a Portuguese integer with thousands dots, such as "1.234".
var ptGrouped = regexp.MustCompile(`^-?\d{1,3}(\.\d{3})+$`)

// parseNumber accepts "1.234,56" and "1.234" for Portuguese exports and "1,234.56"
// otherwise. Plain numbers without grouping parse either way.
func parseNumber(s string, ptBR bool) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	if ptBR && (strings.Contains(s, ",") || ptGrouped.MatchString(s)) {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	return v, nil
}
