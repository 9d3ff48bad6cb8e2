// Package loader reads flow definitions from YAML or JSON files.
//
// A file holds one or more flow documents:
//
//	id: signup
//	initial: start
//	states:
//	  - id: start
//	    transitions:
//	      - on: submit
//	        to: review
//	  - id: review
//	    transitions:
//	      - to: start      # event defaults to the target id
//	      - on: confirm
//	        to: done
//	  - id: done
//	    final: true
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/pageflow/internal/dto"
	"github.com/aretw0/pageflow/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Extensions lists the file extensions LoadDir picks up.
var Extensions = []string{".yaml", ".yml", ".json"}

// Parse decodes every YAML document in data into a graph.
// JSON is valid YAML, so JSON files go through the same path.
func Parse(data []byte) ([]*domain.Graph, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var graphs []*domain.Graph
	for i := 0; ; i++ {
		var raw map[string]any
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse flow document %d: %w", i, err)
		}
		if raw == nil {
			continue
		}

		g, err := decode(raw)
		if err != nil {
			return nil, fmt.Errorf("flow document %d: %w", i, err)
		}
		graphs = append(graphs, g)
	}
	return graphs, nil
}

// ParseJSON decodes a single JSON flow document.
func ParseJSON(data []byte) (*domain.Graph, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse flow: %w", err)
	}
	return decode(raw)
}

// LoadFile reads the flows of one file.
func LoadFile(path string) ([]*domain.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		g, err := ParseJSON(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return []*domain.Graph{g}, nil
	}

	graphs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return graphs, nil
}

// LoadDir reads every flow file directly inside dir, in lexical order.
func LoadDir(dir string) ([]*domain.Graph, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow directory: %w", err)
	}

	var graphs []*domain.Graph
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(Extensions, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		gs, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		graphs = append(graphs, gs...)
	}
	return graphs, nil
}

// Load reads a file or a directory.
func Load(path string) ([]*domain.Graph, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}

func decode(raw map[string]any) (*domain.Graph, error) {
	var meta dto.FlowMetadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &meta,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode flow: %w", err)
	}
	return toGraph(meta)
}

func toGraph(meta dto.FlowMetadata) (*domain.Graph, error) {
	spec := domain.GraphSpec{
		ID:          meta.ID,
		Description: meta.Description,
		Initial:     meta.Initial,
	}
	if spec.Initial == "" && len(meta.States) > 0 {
		spec.Initial = meta.States[0].ID
	}

	for _, s := range meta.States {
		if s.ID == "" {
			return nil, fmt.Errorf("%w: flow %q has a state without id", domain.ErrInvalidGraph, meta.ID)
		}
		spec.States = append(spec.States, s.ID)
		if s.Final {
			spec.Final = append(spec.Final, s.ID)
		}
		for _, t := range s.Transitions {
			spec.Transitions = append(spec.Transitions, domain.Transition{
				From:  s.ID,
				Event: t.Event(),
				To:    t.Target(),
			})
		}
	}

	return domain.NewGraph(spec)
}
