package report

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/edp1096/cmos-inverter/pkg/analysis"
	"github.com/pkg/errors"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 15, 64)
}

// writeColumns writes equal-length float columns under a header row.
func writeColumns(w io.Writer, header []string, cols ...[]float64) error {
	if len(header) != len(cols) {
		return errors.Errorf("csv: %d header fields for %d columns", len(header), len(cols))
	}
	n := 0
	if len(cols) > 0 {
		n = len(cols[0])
	}
	for _, c := range cols {
		if len(c) != n {
			return errors.New("csv: column size mismatch")
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "csv: writing header")
	}

	row := make([]string, len(cols))
	for r := 0; r < n; r++ {
		for c := range cols {
			row[c] = formatFloat(cols[c][r])
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "csv: writing row %d", r)
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "csv: flush")
}

func WriteVTC(w io.Writer, curve analysis.VTCCurve) error {
	nmos := make([]float64, len(curve))
	pmos := make([]float64, len(curve))
	residual := make([]float64, len(curve))
	for i, p := range curve {
		nmos[i] = p.NmosCurrent
		pmos[i] = p.PmosCurrent
		residual[i] = p.Residual
	}

	return writeColumns(w,
		[]string{"vin", "vout", "id_n", "id_p", "residual"},
		curve.Inputs(), curve.Outputs(), nmos, pmos, residual)
}

func WriteTransient(w io.Writer, trace analysis.TransientTrace) error {
	return writeColumns(w,
		[]string{"time", "vin", "vout"},
		trace.Times(), trace.Inputs(), trace.Outputs())
}

func WritePowerSweep(w io.Writer, reports []analysis.PowerReport) error {
	f := make([]float64, len(reports))
	static := make([]float64, len(reports))
	dynamic := make([]float64, len(reports))
	total := make([]float64, len(reports))
	for i, r := range reports {
		f[i], static[i], dynamic[i], total[i] = r.Frequency, r.Static, r.Dynamic, r.Total
	}

	return writeColumns(w,
		[]string{"frequency", "static", "dynamic", "total"},
		f, static, dynamic, total)
}

// WriteMonteCarlo writes one row per drawn sample. Failed samples carry NaN metrics.
func WriteMonteCarlo(w io.Writer, samples []analysis.MonteCarloSample) error {
	cols := make([][]float64, 7)
	for i := range cols {
		cols[i] = make([]float64, len(samples))
	}
	for i, s := range samples {
		cols[0][i] = s.Config.NMOS.Vt
		cols[1][i] = s.Config.PMOS.Vt
		cols[2][i] = s.Config.NMOS.Beta
		cols[3][i] = s.Config.PMOS.Beta
		if s.Err != nil {
			cols[4][i], cols[5][i], cols[6][i] = math.NaN(), math.NaN(), math.NaN()
			continue
		}
		cols[4][i] = s.Vm
		cols[5][i] = s.Margins.NML
		cols[6][i] = s.Margins.NMH
	}

	return writeColumns(w,
		[]string{"vtn", "vtp", "beta_n", "beta_p", "vm", "nml", "nmh"},
		cols...)
}
