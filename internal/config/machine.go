package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fastprodman/gumball/internal/services/gumball"
)

// LoadMachineParams reads machine parameters from a YAML file. Keys absent
// from the file keep their gumball.DefaultParams value; an empty path
// returns the defaults. The result is validated.
func LoadMachineParams(path string) (gumball.Params, error) {
	if path == "" {
		return gumball.DefaultParams(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return gumball.Params{}, fmt.Errorf("read machine config: %w", err)
	}

	return ParseMachineParams(raw)
}

func ParseMachineParams(raw []byte) (gumball.Params, error) {
	p := gumball.DefaultParams()

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	err := dec.Decode(&p)
	if err != nil && !errors.Is(err, io.EOF) {
		return gumball.Params{}, fmt.Errorf("machine config: %w", err)
	}

	err = p.Validate()
	if err != nil {
		return gumball.Params{}, fmt.Errorf("machine config: %w", err)
	}

	return p, nil
}
