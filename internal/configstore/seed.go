package configstore

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/voidrelay/tunnelbroker/internal/models"
)

// SeedUser is one entry of a YAML seed file, mirroring TunnelUser but
// with plain fields so yaml.v3 can unmarshal it directly.
type SeedUser struct {
	ID    uuid.UUID        `yaml:"id"`
	Alias string           `yaml:"alias"`
	Ports []models.PortPair `yaml:"ports"`
}

type seedFile struct {
	Users []SeedUser `yaml:"users"`
}

// LoadSeedFile reads and parses a YAML seed file of the shape:
//
//	users:
//	  - id: "b6b6c6b0-....-...."
//	    alias: "swift-falcon"
//	    ports:
//	      - client_port: 25565
//	        server_port: 30000
func LoadSeedFile(path string) ([]SeedUser, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("configstore: read seed file %s: %w", path, err)
	}

	var parsed seedFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("configstore: parse seed file %s: %w", path, err)
	}
	return parsed.Users, nil
}
