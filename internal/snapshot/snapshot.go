// Package snapshot freezes semantic-layer metadata and query history into a file
// and serves it back through the source.Source interface.
//
// A snapshot file is YAML, TOML or JSON, picked by extension, and may be wrapped
// in zstd (.zst) or gzip (.gz) compression.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"henry/internal/errors"
	"henry/internal/metadata"
	"henry/internal/usage"
)

// FormatVersion is the snapshot file layout version.
const FormatVersion = 1

// Window is the history window a snapshot was captured with.
type Window struct {
	TimeframeDays int `json:"timeframeDays" yaml:"timeframeDays" toml:"timeframeDays"`
	MinRunCount   int `json:"minRunCount" yaml:"minRunCount" toml:"minRunCount"`
}

// GitTestRun holds the git connection test results of one project.
type GitTestRun struct {
	Project string                   `json:"project" yaml:"project" toml:"project"`
	Results []metadata.GitTestResult `json:"results" yaml:"results" toml:"results"`
}

// Snapshot is a frozen copy of everything an audit reads.
type Snapshot struct {
	Version    int       `json:"version" yaml:"version" toml:"version"`
	ID         string    `json:"id" yaml:"id" toml:"id"`
	CapturedAt time.Time `json:"capturedAt" yaml:"capturedAt" toml:"capturedAt"`
	// Origin is the API base URL the snapshot was exported from.
	Origin string `json:"origin,omitempty" yaml:"origin,omitempty" toml:"origin,omitempty"`
	Window Window `json:"window" yaml:"window" toml:"window"`

	Projects []metadata.Project `json:"projects" yaml:"projects" toml:"projects"`
	Models   []metadata.Model   `json:"models" yaml:"models" toml:"models"`
	Explores []metadata.Explore `json:"explores" yaml:"explores" toml:"explores"`
	History  []usage.RawRow     `json:"history" yaml:"history" toml:"history"`
	GitTests []GitTestRun       `json:"gitTests,omitempty" yaml:"gitTests,omitempty" toml:"gitTests,omitempty"`
}

// New creates an empty snapshot with a fresh id.
func New(origin string, window Window) *Snapshot {
	return &Snapshot{
		Version:    FormatVersion,
		ID:         uuid.New().String(),
		CapturedAt: time.Now().UTC().Truncate(time.Second),
		Origin:     origin,
		Window:     window,
		Projects:   []metadata.Project{},
		Models:     []metadata.Model{},
		Explores:   []metadata.Explore{},
		History:    []usage.RawRow{},
	}
}

// Codec is a snapshot file encoding.
type Codec string

const (
	CodecYAML Codec = "yaml"
	CodecTOML Codec = "toml"
	CodecJSON Codec = "json"
)

// Compression is an optional outer compression layer.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionZstd Compression = "zstd"
	CompressionGzip Compression = "gzip"
)

// DetectFormat picks the codec and compression from a file name, for example
// "prod.yaml.zst" is zstd-compressed YAML.
func DetectFormat(path string) (Codec, Compression, error) {
	name := strings.ToLower(filepath.Base(path))
	comp := CompressionNone
	switch ext := filepath.Ext(name); ext {
	case ".zst", ".zstd":
		comp = CompressionZstd
		name = strings.TrimSuffix(name, ext)
	case ".gz":
		comp = CompressionGzip
		name = strings.TrimSuffix(name, ext)
	}

	switch filepath.Ext(name) {
	case ".yaml", ".yml":
		return CodecYAML, comp, nil
	case ".toml":
		return CodecTOML, comp, nil
	case ".json":
		return CodecJSON, comp, nil
	}
	return "", "", errors.Newf(errors.ConfigInvalid,
		"cannot tell snapshot format from %q: use .yaml, .yml, .toml or .json, optionally with .zst or .gz", path)
}

// Load reads a snapshot file.
func Load(path string) (*Snapshot, error) {
	codec, comp, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.NotFound, fmt.Sprintf("snapshot %s not found", path), err)
		}
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	snap, err := Decode(f, codec, comp)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	return snap, nil
}

// Decode reads a snapshot from r.
func Decode(r io.Reader, codec Codec, comp Compression) (*Snapshot, error) {
	switch comp {
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		r = dec
	case CompressionGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}

	var snap Snapshot
	switch codec {
	case CodecYAML:
		if err := yaml.NewDecoder(r).Decode(&snap); err != nil {
			return nil, fmt.Errorf("failed to parse yaml: %w", err)
		}
	case CodecTOML:
		if _, err := toml.NewDecoder(r).Decode(&snap); err != nil {
			return nil, fmt.Errorf("failed to parse toml: %w", err)
		}
	case CodecJSON:
		if err := json.NewDecoder(r).Decode(&snap); err != nil {
			return nil, fmt.Errorf("failed to parse json: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported snapshot codec %q", codec)
	}

	if snap.Version > FormatVersion {
		return nil, errors.Newf(errors.ConfigInvalid,
			"snapshot version %d is newer than supported version %d", snap.Version, FormatVersion)
	}
	return &snap, nil
}

// Save writes the snapshot to path in the format its name asks for.
func (s *Snapshot) Save(path string) error {
	codec, comp, err := DetectFormat(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := s.Encode(&buf, codec, comp); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Encode writes the snapshot to w.
func (s *Snapshot) Encode(w io.Writer, codec Codec, comp Compression) error {
	var closer io.Closer
	switch comp {
	case CompressionZstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return err
		}
		w, closer = enc, enc
	case CompressionGzip:
		gz := gzip.NewWriter(w)
		w, closer = gz, gz
	}

	if err := s.encode(w, codec); err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return err
	}
	if closer != nil {
		return closer.Close()
	}
	return nil
}

func (s *Snapshot) encode(w io.Writer, codec Codec) error {
	switch codec {
	case CodecYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case CodecTOML:
		if err := toml.NewEncoder(w).Encode(s); err != nil {
			return fmt.Errorf("failed to encode toml: %w", err)
		}
		return nil
	case CodecJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unsupported snapshot codec %q", codec)
}

// GitTestsFor returns the recorded git test results of a project.
func (s *Snapshot) GitTestsFor(project string) ([]metadata.GitTestResult, bool) {
	for _, run := range s.GitTests {
		if run.Project == project {
			return run.Results, true
		}
	}
	return nil, false
}
