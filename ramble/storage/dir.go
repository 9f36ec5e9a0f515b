package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// DirStore reads and writes delimiter-separated fact files in a pair of
// directories: <name>.facts for inputs, <name>.csv for outputs. A directive's
// filename and delimiter params override the defaults.
type DirStore struct {
	// InputDir is where .facts files are read from.
	InputDir string
	// OutputDir is where .csv files are written to.
	OutputDir string
	// Delimiter between fields; tab when zero.
	Delimiter rune
}

func NewDirStore(inputDir, outputDir string) *DirStore {
	return &DirStore{InputDir: inputDir, OutputDir: outputDir, Delimiter: '\t'}
}

func (s *DirStore) delimiter(params map[string]string) rune {
	if d := params["delimiter"]; d != "" {
		return []rune(d)[0]
	}
	if s.Delimiter == 0 {
		return '\t'
	}
	return s.Delimiter
}

func (s *DirStore) inputPath(relation string, params map[string]string) string {
	if name := params["filename"]; name != "" {
		if filepath.IsAbs(name) {
			return name
		}
		return filepath.Join(s.InputDir, name)
	}
	return filepath.Join(s.InputDir, relation+".facts")
}

func (s *DirStore) outputPath(relation string, params map[string]string) string {
	if name := params["filename"]; name != "" {
		if filepath.IsAbs(name) {
			return name
		}
		return filepath.Join(s.OutputDir, name)
	}
	return filepath.Join(s.OutputDir, relation+".csv")
}

func (s *DirStore) Load(relation string, params map[string]string) ([][]string, error) {
	path := s.inputPath(relation, params)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// A missing fact file is an empty relation.
			return nil, nil
		}
		return nil, fmt.Errorf("storage: loading %s: %w", relation, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = s.delimiter(params)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("storage: loading %s from %s: %w", relation, path, err)
	}
	return rows, nil
}

func (s *DirStore) Store(relation string, params map[string]string, rows [][]string) error {
	path := s.outputPath(relation, params)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("storage: storing %s: %w", relation, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("storage: storing %s: %w", relation, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = s.delimiter(params)
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("storage: storing %s to %s: %w", relation, path, err)
	}
	w.Flush()
	return w.Error()
}

func (s *DirStore) Size(relation string) (int, error) {
	rows, err := s.Load(relation, nil)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}
