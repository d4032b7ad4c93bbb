package world

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definition is the parsed form of a world content file, preserved in load
// order so it can be imported into the store verbatim.
type Definition struct {
	StartRoom int64
	Rooms     []*Room
	Exits     []Exit
}

// yamlWorldFile is the top-level YAML structure for world content files.
type yamlWorldFile struct {
	World yamlWorld `yaml:"world"`
}

type yamlWorld struct {
	StartRoom int64      `yaml:"start_room"`
	Rooms     []yamlRoom `yaml:"rooms"`
}

type yamlRoom struct {
	ID          int64      `yaml:"id"`
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Exits       []yamlExit `yaml:"exits"`
}

type yamlExit struct {
	Direction string `yaml:"direction"`
	Target    int64  `yaml:"target"`
}

// ParseDefinition parses a world content file from YAML bytes.
//
// Precondition: data must be valid YAML conforming to the world schema.
// Postcondition: Returns the parsed Definition or a non-nil error.
func ParseDefinition(data []byte) (Definition, error) {
	var file yamlWorldFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Definition{}, fmt.Errorf("parsing world YAML: %w", err)
	}

	def := Definition{StartRoom: file.World.StartRoom}
	for _, yr := range file.World.Rooms {
		def.Rooms = append(def.Rooms, &Room{
			ID:          yr.ID,
			Name:        yr.Name,
			Description: strings.TrimSpace(yr.Description),
		})
		for _, ye := range yr.Exits {
			def.Exits = append(def.Exits, Exit{
				FromRoomID: yr.ID,
				ToRoomID:   ye.Target,
				Direction:  ye.Direction,
			})
		}
	}
	return def, nil
}

// Graph validates the definition and builds the immutable room graph.
//
// Postcondition: Returns a Graph or a non-nil error describing the first violation.
func (d Definition) Graph() (*Graph, error) {
	return NewGraph(d.Rooms, d.Exits, d.StartRoom)
}

// LoadGraphFromFile reads a world content file and builds its graph.
//
// Precondition: path must point to a valid YAML world file.
// Postcondition: Returns a validated Graph or a non-nil error.
func LoadGraphFromFile(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading world file %s: %w", path, err)
	}
	def, err := ParseDefinition(data)
	if err != nil {
		return nil, err
	}
	return def.Graph()
}
