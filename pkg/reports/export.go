package reports

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Export renders reports in the requested format
func Export(reports []Report, format ExportFormat) ([]byte, error) {
	switch format {
	case ExportFormatJSON:
		return json.MarshalIndent(reports, "", "  ")
	case ExportFormatCSV:
		return exportCSV(reports)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// exportCSV writes one row per run with the column set of the experiment
// result files.
func exportCSV(reports []Report) ([]byte, error) {
	var buf strings.Builder
	writer := csv.NewWriter(&buf)

	header := []string{
		"Scenario", "Weights", "Algorithm", "Run", "Best_Fitness", "Execution_Time",
		"Energy_Total_J", "Reliability_Penalty", "Geometric_Penalty",
		"Network_Lifetime_Rounds", "Convergence", "Best_Solution_Vector",
	}
	if err := writer.Write(header); err != nil {
		return nil, err
	}

	for _, r := range reports {
		row := []string{
			r.Scenario,
			r.WeightsLabel,
			r.Algorithm,
			strconv.Itoa(r.Run),
			formatFloat(r.Fitness),
			formatOptional(r.ExecutionTime),
			formatFloat(r.Metrics.TotalEnergyJ),
			formatFloat(r.Metrics.ReliabilityPenalty),
			formatFloat(r.Metrics.GeometricPenalty),
			formatFloat(r.Metrics.NetworkLifetime),
			formatConvergence(r.Convergence),
			formatVector(r.Vector),
		}
		if err := writer.Write(row); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// formatOptional leaves the cell empty for reports without a value
func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatConvergence(v []float64) string {
	if v == nil {
		return ""
	}
	return formatVector(v)
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = formatFloat(x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
