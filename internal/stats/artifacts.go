// Package stats records what a simulation run produced: its configuration,
// the final peaks, the field activations and the per-step centroid trace,
// under a per-run directory with a shared run index.
package stats

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"
)

const runIndexFile = "run_index.json"

var ErrRunIDRequired = errors.New("run id is required")

type RunConfig struct {
	RunID          string  `json:"run_id"`
	Command        string  `json:"command"`
	Scenario       string  `json:"scenario"`
	Steps          int     `json:"steps"`
	DeltaT         float64 `json:"delta_t"`
	Size           int     `json:"size"`
	Position       float64 `json:"position"`
	TargetPosition float64 `json:"target_position,omitempty"`
	Rule           string  `json:"rule,omitempty"`
	LearningRate   float64 `json:"learning_rate,omitempty"`
	Scalar         float64 `json:"scalar,omitempty"`
	Iterations     int     `json:"iterations,omitempty"`
	Seed           uint64  `json:"seed"`
	Store          string  `json:"store"`
}

type PeakRecord struct {
	Field             string  `json:"field"`
	Present           bool    `json:"present"`
	Centroid          float64 `json:"centroid"`
	HighestActivation float64 `json:"highest_activation"`
	Width             int     `json:"width"`
}

// Trace holds one centroid per step for every field. A step without a peak
// records NaN.
type Trace struct {
	Fields    []string    `json:"fields"`
	Centroids [][]float64 `json:"-"`
}

// Record appends one step. centroids are in Fields order.
func (t *Trace) Record(centroids []float64) {
	t.Centroids = append(t.Centroids, append([]float64(nil), centroids...))
}

// CentroidDrift summarizes a field's centroid over the steps that had a
// peak. FirstPeak is -1 and the values are zero when there was none.
type CentroidDrift struct {
	Field      string  `json:"field"`
	PeakSteps  int     `json:"peak_steps"`
	Mean       float64 `json:"mean"`
	StdDev     float64 `json:"std_dev"`
	FirstPeak  int     `json:"first_peak_step"`
	FinalValue float64 `json:"final"`
}

func (t Trace) Drift() []CentroidDrift {
	drifts := make([]CentroidDrift, 0, len(t.Fields))
	for col, name := range t.Fields {
		d := CentroidDrift{Field: name, FirstPeak: -1}
		var values []float64
		for step, row := range t.Centroids {
			if col >= len(row) || math.IsNaN(row[col]) {
				continue
			}
			if d.FirstPeak < 0 {
				d.FirstPeak = step
			}
			values = append(values, row[col])
		}
		d.PeakSteps = len(values)
		if len(values) > 0 {
			d.FinalValue = values[len(values)-1]
			d.Mean = stat.Mean(values, nil)
		}
		if len(values) > 1 {
			_, d.StdDev = stat.MeanStdDev(values, nil)
		}
		drifts = append(drifts, d)
	}
	return drifts
}

type RunArtifacts struct {
	Config      RunConfig            `json:"config"`
	FinalTime   float64              `json:"final_time"`
	Peaks       []PeakRecord         `json:"peaks"`
	Activations map[string][]float64 `json:"-"`
	Trace       Trace                `json:"-"`
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	Command      string  `json:"command"`
	Scenario     string  `json:"scenario"`
	Steps        int     `json:"steps"`
	FinalTime    float64 `json:"final_time"`
	Peaks        int     `json:"peaks"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

// WriteRunArtifacts writes config.json and peaks.json, plus
// activations.csv, centroid_trace.csv and drift.json when the run carries
// them, under baseDir/<run id>.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", ErrRunIDRequired
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "peaks.json"), map[string]any{"final_time": artifacts.FinalTime, "peaks": artifacts.Peaks}); err != nil {
		return "", err
	}
	if len(artifacts.Activations) > 0 {
		if err := writeActivations(filepath.Join(runDir, "activations.csv"), artifacts.Activations); err != nil {
			return "", err
		}
	}
	if len(artifacts.Trace.Centroids) > 0 {
		if err := writeTrace(filepath.Join(runDir, "centroid_trace.csv"), artifacts.Trace); err != nil {
			return "", err
		}
		if err := writeJSON(filepath.Join(runDir, "drift.json"), artifacts.Trace.Drift()); err != nil {
			return "", err
		}
	}
	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return ErrRunIDRequired
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the index newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// later appends win ties
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ReadRunConfig loads the config.json of a stored run.
func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}
	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

// ExportRunArtifacts copies every file of a stored run to outDir/<run id>.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", ErrRunIDRequired
	}

	src := filepath.Join(baseDir, runID)
	entries, err := os.ReadDir(src)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := copyFile(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return "", err
		}
	}
	return dst, nil
}

// ReadActivations loads activations.csv back into per-field columns.
func ReadActivations(baseDir, runID string) (map[string][]float64, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, "activations.csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, false, err
	}
	if len(header) < 2 || header[0] != "x" {
		return nil, false, fmt.Errorf("activations header must start with x and name at least one field")
	}

	columns := make(map[string][]float64, len(header)-1)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		for i, name := range header[1:] {
			if record[i+1] == "" {
				continue
			}
			value, err := strconv.ParseFloat(record[i+1], 64)
			if err != nil {
				return nil, false, err
			}
			columns[name] = append(columns[name], value)
		}
	}
	return columns, true, nil
}

// writeActivations writes one row per sample and one column per field in
// name order. Shorter fields leave their trailing cells empty.
func writeActivations(path string, activations map[string][]float64) error {
	names := make([]string, 0, len(activations))
	rows := 0
	for name, values := range activations {
		names = append(names, name)
		rows = max(rows, len(values))
	}
	sort.Strings(names)

	records := make([][]string, 0, rows+1)
	records = append(records, append([]string{"x"}, names...))
	for x := 0; x < rows; x++ {
		record := []string{strconv.Itoa(x)}
		for _, name := range names {
			values := activations[name]
			if x >= len(values) {
				record = append(record, "")
				continue
			}
			record = append(record, strconv.FormatFloat(values[x], 'g', -1, 64))
		}
		records = append(records, record)
	}
	return writeCSV(path, records)
}

func writeTrace(path string, trace Trace) error {
	records := make([][]string, 0, len(trace.Centroids)+1)
	records = append(records, append([]string{"step"}, trace.Fields...))
	for step, row := range trace.Centroids {
		record := []string{strconv.Itoa(step + 1)}
		for _, c := range row {
			if math.IsNaN(c) {
				record = append(record, "")
				continue
			}
			record = append(record, strconv.FormatFloat(c, 'f', -1, 64))
		}
		records = append(records, record)
	}
	return writeCSV(path, records)
}

func writeCSV(path string, records [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(records); err != nil {
		return err
	}
	return file.Sync()
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
