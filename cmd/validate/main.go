// Command validate lints world-variant YAML files before deployment.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mlundquist/saga-engine/pkg/world"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <world.yaml> [...]\n", os.Args[0])
		os.Exit(1)
	}

	failed := false
	for _, filename := range os.Args[1:] {
		if err := validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
			continue
		}
		fmt.Printf("%s is valid\n", filename)
	}
	if failed {
		os.Exit(1)
	}
}

var filenameRe = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

func validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	baseName := filepath.Base(filename)
	if !strings.HasSuffix(baseName, ".yaml") {
		return fmt.Errorf("world file must have .yaml extension: %s", baseName)
	}

	id := strings.TrimSuffix(baseName, ".yaml")
	if !filenameRe.MatchString(id) {
		return fmt.Errorf("world filename %q must be lowercase (e.g. my_world.yaml)", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	var w world.World
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&w); err != nil {
		return fmt.Errorf("file %s failed strict YAML decoding: %w", filename, err)
	}

	// The filename is authoritative for the id at load time.
	w.ID = id
	if err := w.Validate(); err != nil {
		return err
	}

	if w.WordLimit < 0 {
		return fmt.Errorf("world %q: word limit cannot be negative", id)
	}
	for i, entry := range w.Knowledge {
		for _, topic := range entry.Topics {
			if strings.TrimSpace(topic) == "" {
				return fmt.Errorf("world %q: knowledge entry %d has a blank topic", id, i)
			}
		}
	}

	return nil
}
