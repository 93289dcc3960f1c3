package course

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Courses []Course `yaml:"courses"`
}

// LoadFile reads a YAML course catalog.
func LoadFile(path string) ([]Course, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a YAML catalog of the form
//
//	courses:
//	  - id: go-101
//	    title: Go basics
//	    sections:
//	      - title: Intro
//	        lessons:
//	          - name: Welcome
//	            media_url: https://cdn.example.com/go-101/welcome.mp4
func Parse(r io.Reader) ([]Course, error) {
	var cf catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	seen := make(map[string]struct{}, len(cf.Courses))
	for i, c := range cf.Courses {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			return nil, fmt.Errorf("catalog course %d: id is required", i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("catalog course %q: duplicate id", id)
		}
		seen[id] = struct{}{}
		cf.Courses[i].ID = id
	}
	return cf.Courses, nil
}
