package fitsfile

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/astrogo/fitsio"
)

// BeamTableName is the extension CASA writes per-plane beams to.
const BeamTableName = "BEAMS"

// BeamRow is one entry of a per-plane beam table. Axes and position angle
// are in degrees.
type BeamRow struct {
	Chan  int
	Pol   int
	Major float64
	Minor float64
	PA    float64
}

// beamRecord is the row layout CASA uses for BEAMS tables.
type beamRecord struct {
	BMAJ float32 `fits:"BMAJ"`
	BMIN float32 `fits:"BMIN"`
	BPA  float32 `fits:"BPA"`
	CHAN int32   `fits:"CHAN"`
	POL  int32   `fits:"POL"`
}

// beamTable renders rows as a BEAMS binary table, axes in arcsec.
func beamTable(rows []BeamRow) (*fitsio.Table, error) {
	cols := []fitsio.Column{
		{Name: "BMAJ", Format: "E", Unit: "arcsec"},
		{Name: "BMIN", Format: "E", Unit: "arcsec"},
		{Name: "BPA", Format: "E", Unit: "deg"},
		{Name: "CHAN", Format: "J"},
		{Name: "POL", Format: "J"},
	}
	tbl, err := fitsio.NewTable(BeamTableName, cols, fitsio.BINARY_TBL)
	if err != nil {
		return nil, err
	}
	var nchan, npol int
	for _, r := range rows {
		rec := beamRecord{
			BMAJ: float32(r.Major * 3600),
			BMIN: float32(r.Minor * 3600),
			BPA:  float32(r.PA),
			CHAN: int32(r.Chan),
			POL:  int32(r.Pol),
		}
		if err := tbl.Write(&rec); err != nil {
			tbl.Close()
			return nil, err
		}
		nchan = max(nchan, r.Chan+1)
		npol = max(npol, r.Pol+1)
	}
	err = tbl.Header().Append(
		Card{Name: "NCHAN", Value: nchan},
		Card{Name: "NPOL", Value: npol},
	)
	if err != nil {
		tbl.Close()
		return nil, err
	}
	return tbl, nil
}

// readBeamTable decodes a CASA BEAMS binary table, ordered by channel then
// polarization.
func readBeamTable(tbl *fitsio.Table) ([]BeamRow, error) {
	scale := map[string]float64{}
	for _, name := range []string{"BMAJ", "BMIN", "BPA"} {
		i := tbl.Index(name)
		if i < 0 {
			return nil, fmt.Errorf("fitsfile: %s table has no %s column", BeamTableName, name)
		}
		def := "arcsec"
		if name == "BPA" {
			def = "deg"
		}
		f, err := angleScale(tbl.Col(i).Unit, def)
		if err != nil {
			return nil, fmt.Errorf("fitsfile: %s column %s: %w", BeamTableName, name, err)
		}
		scale[name] = f
	}

	rows, err := tbl.Read(0, tbl.NumRows())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BeamRow
	for n := 0; rows.Next(); n++ {
		rec := map[string]any{"BMAJ": nil, "BMIN": nil, "BPA": nil, "CHAN": nil, "POL": nil}
		if err := rows.Scan(&rec); err != nil {
			return nil, fmt.Errorf("fitsfile: %s row %d: %w", BeamTableName, n, err)
		}
		row := BeamRow{Chan: n}
		if v, ok := rec["CHAN"]; ok && v != nil {
			row.Chan = int(number(v))
		}
		if v, ok := rec["POL"]; ok && v != nil {
			row.Pol = int(number(v))
		}
		row.Major = number(rec["BMAJ"]) * scale["BMAJ"]
		row.Minor = number(rec["BMIN"]) * scale["BMIN"]
		row.PA = number(rec["BPA"]) * scale["BPA"]
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Chan != out[j].Chan {
			return out[i].Chan < out[j].Chan
		}
		return out[i].Pol < out[j].Pol
	})
	return out, nil
}

// angleScale returns the factor converting unit to degrees.
func angleScale(unit, def string) (float64, error) {
	u := strings.ToLower(strings.TrimSpace(unit))
	if u == "" {
		u = def
	}
	switch u {
	case "deg", "degree", "degrees":
		return 1, nil
	case "arcmin":
		return 1.0 / 60, nil
	case "arcsec":
		return 1.0 / 3600, nil
	case "rad":
		return 180 / math.Pi, nil
	}
	return 0, fmt.Errorf("unknown angle unit %q", unit)
}

// number widens a scanned table cell.
func number(v any) float64 {
	switch x := v.(type) {
	case float32:
		return float64(x)
	case float64:
		return x
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case int:
		return float64(x)
	}
	return math.NaN()
}
