package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/driftsim/internal/drift"
	"github.com/san-kum/driftsim/internal/probe"
	"github.com/san-kum/driftsim/internal/schema"
	"github.com/san-kum/driftsim/internal/vecmath"
)

const (
	metadataFile   = "metadata.json"
	samplesFile    = "samples.csv"
	resolvedFile   = "resolved.bin"
	checkpointFile = "checkpoint.bin"
)

// ErrNotFound indicates a run id with no stored metadata.
var ErrNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string                      `json:"id" yaml:"id"`
	Name        string                      `json:"name" yaml:"name"`
	Parent      string                      `json:"parent,omitempty" yaml:"parent,omitempty"`
	Timestamp   time.Time                   `json:"timestamp" yaml:"timestamp"`
	Direction   schema.VectorDoc            `json:"direction" yaml:"direction"`
	Scale       float64                     `json:"scale" yaml:"scale"`
	Initial     schema.VectorDoc            `json:"initial" yaml:"initial"`
	StartStep   int                         `json:"start_step" yaml:"start_step"`
	Steps       int                         `json:"steps" yaml:"steps"`
	StepsTaken  int                         `json:"steps_taken" yaml:"steps_taken"`
	Samples     int                         `json:"samples" yaml:"samples"`
	Strategies  []string                    `json:"strategies" yaml:"strategies"`
	Final       map[string]schema.VectorDoc `json:"final" yaml:"final"`
	Metrics     map[string]float64          `json:"metrics" yaml:"metrics"`
	Digest      string                      `json:"digest,omitempty" yaml:"digest,omitempty"`
	StateDigest string                      `json:"state_digest,omitempty" yaml:"state_digest,omitempty"`
}

// TotalSteps is the step count the stored state represents.
func (m *RunMetadata) TotalSteps() int {
	return m.StartStep + m.StepsTaken
}

// Save writes a run directory and returns its id. parent names the run a
// resumed result continues from, or is empty.
func (s *Store) Save(result *probe.Result, parent string) (string, error) {
	sc := result.Scenario
	name := sc.Name
	if name == "" {
		name = "run"
	}
	runID := fmt.Sprintf("%s_%d", name, time.Now().UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	strategies := make([]string, 0, len(result.Final))
	final := make(map[string]schema.VectorDoc, len(result.Final))
	for k, v := range result.Final {
		strategies = append(strategies, k)
		final[k] = schema.FromVec3(v)
	}
	sort.Strings(strategies)

	meta := RunMetadata{
		ID:         runID,
		Name:       sc.Name,
		Parent:     parent,
		Timestamp:  time.Now(),
		Direction:  schema.FromVec3(sc.Direction),
		Scale:      sc.Scale,
		Initial:    schema.FromVec3(sc.Initial),
		StartStep:  sc.StartStep,
		Steps:      sc.Steps,
		StepsTaken: result.StepsTaken,
		Samples:    sc.Samples,
		Strategies: strategies,
		Final:      final,
		Metrics:    result.Metrics,
	}

	if result.Checkpoint != nil {
		meta.Digest = result.Digest.String()
		meta.StateDigest = result.StateDigest.String()

		if err := os.WriteFile(filepath.Join(runDir, checkpointFile), result.Checkpoint, 0644); err != nil {
			return "", err
		}
		resolved := result.Final[probe.Neumaier].Bytes()
		if err := os.WriteFile(filepath.Join(runDir, resolvedFile), resolved[:], 0644); err != nil {
			return "", err
		}
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeSamples(filepath.Join(runDir, samplesFile), strategies, result.Samples); err != nil {
		return "", err
	}

	return runID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSamples(path string, strategies []string, samples []probe.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{"step", "ref_x", "ref_y", "ref_z"}
	for _, name := range strategies {
		header = append(header, name+"_abs", name+"_rel")
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, sample := range samples {
		row := []string{
			strconv.Itoa(sample.Step),
			formatFloat(sample.Reference.X),
			formatFloat(sample.Reference.Y),
			formatFloat(sample.Reference.Z),
		}
		for _, name := range strategies {
			row = append(row, formatFloat(sample.AbsError[name]), formatFloat(sample.RelError[name]))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := s.readFile(runID, metadataFile)
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: decode %s metadata: %w", runID, err)
	}

	return &meta, nil
}

// LoadCheckpoint restores the stored neumaier accumulator of a run.
func (s *Store) LoadCheckpoint(runID string) (*drift.Accumulator, error) {
	data, err := s.readFile(runID, checkpointFile)
	if err != nil {
		return nil, err
	}
	return drift.Restore(data)
}

// LoadCheckpointBytes returns the raw 48-byte checkpoint of a run.
func (s *Store) LoadCheckpointBytes(runID string) ([]byte, error) {
	return s.readFile(runID, checkpointFile)
}

// LoadResolved decodes the stored 24-byte resolved vector of a run.
func (s *Store) LoadResolved(runID string) (vecmath.Vec3, error) {
	data, err := s.readFile(runID, resolvedFile)
	if err != nil {
		return vecmath.Vec3{}, err
	}
	return vecmath.FromBytes(data)
}

// Series holds the absolute error curves of a stored run.
type Series struct {
	Steps  []int
	Errors map[string][]float64
}

func (s *Store) LoadSamples(runID string) (*Series, error) {
	path := filepath.Join(s.baseDir, runID, samplesFile)
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	series := &Series{Errors: make(map[string][]float64)}
	if len(records) < 2 {
		return series, nil
	}

	header := records[0]
	for _, record := range records[1:] {
		step, err := strconv.Atoi(record[0])
		if err != nil {
			continue
		}
		series.Steps = append(series.Steps, step)

		for j := 4; j < len(record) && j < len(header); j++ {
			name, ok := strings.CutSuffix(header[j], "_abs")
			if !ok {
				continue
			}
			val, err := strconv.ParseFloat(record[j], 64)
			if err != nil {
				val = 0
			}
			series.Errors[name] = append(series.Errors[name], val)
		}
	}

	return series, nil
}

func (s *Store) readFile(runID, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, runID, name)
		}
		return nil, err
	}
	return data, nil
}
