package dashboard

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Sheet names written by WriteXLSX.
const (
	SheetPreview = "Preview"
	SheetMissing = "Missing"
	SheetTrend   = "Trend"
	SheetStats   = "Statistics"
)

// WriteXLSX exports the preview, top missing, trend and basic statistics
// of snap as a workbook at path.
func WriteXLSX(path string, snap *Snapshot) error {
	if snap == nil {
		return eris.New("xlsx: nothing to export")
	}
	f := xlsx.NewFile()

	if err := writePreview(f, snap.Preview); err != nil {
		return err
	}

	missing, err := f.AddSheet(SheetMissing)
	if err != nil {
		return eris.Wrap(err, "xlsx: add missing sheet")
	}
	addStrings(missing, "field", "missing")
	for _, m := range snap.TopMissing {
		row := missing.AddRow()
		row.AddCell().SetString(m.Field)
		row.AddCell().SetInt(m.Count)
	}

	trend, err := f.AddSheet(SheetTrend)
	if err != nil {
		return eris.Wrap(err, "xlsx: add trend sheet")
	}
	addStrings(trend, "label", "value")
	for _, p := range snap.TopTrend {
		row := trend.AddRow()
		row.AddCell().SetString(p.Label)
		row.AddCell().SetFloat(p.Value)
	}

	stats, err := f.AddSheet(SheetStats)
	if err != nil {
		return eris.Wrap(err, "xlsx: add statistics sheet")
	}
	addStrings(stats, "column", "count", "mean", "median", "std", "min", "max")
	if snap.Summary != nil {
		for _, col := range sortedKeys(snap.Summary.Basic) {
			s := snap.Summary.Basic[col]
			row := stats.AddRow()
			row.AddCell().SetString(col)
			row.AddCell().SetInt(s.Count)
			for _, v := range []float64{s.Mean, s.Median, s.Std, s.Min, s.Max} {
				row.AddCell().SetFloat(v)
			}
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	return nil
}

func writePreview(f *xlsx.File, rows []map[string]any) error {
	sheet, err := f.AddSheet(SheetPreview)
	if err != nil {
		return eris.Wrap(err, "xlsx: add preview sheet")
	}
	columns := previewColumns(rows)
	addStrings(sheet, columns...)
	for _, rec := range rows {
		row := sheet.AddRow()
		for _, col := range columns {
			cell := row.AddCell()
			switch v := rec[col].(type) {
			case nil:
			case float64:
				cell.SetFloat(v)
			case string:
				cell.SetString(v)
			default:
				cell.SetString(fmt.Sprint(v))
			}
		}
	}
	return nil
}

// previewColumns is the sorted union of keys across rows.
func previewColumns(rows []map[string]any) []string {
	seen := make(map[string]struct{})
	for _, rec := range rows {
		for k := range rec {
			seen[k] = struct{}{}
		}
	}
	return sortedKeys(seen)
}

func addStrings(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
