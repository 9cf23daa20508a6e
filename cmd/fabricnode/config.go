package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/meshpact/trustfabric/participant"
	"github.com/meshpact/trustfabric/topology"
)

// RunConfig is the on-disk configuration for the run subcommand: where this
// node's key and topology live, where to listen, and the policy knobs the
// driver consults. It embeds participant.Config so a single JSON file
// covers both the ambient wiring and the protocol policy, the way the
// teacher's NodeConfig embeds BreezeConfig/RelayConfig.
type RunConfig struct {
	// KeyPath is the encrypted private key file written by genkey.
	KeyPath string `json:"keyPath"`
	// ListenAddress is where this node accepts incoming pushes, empty to
	// disable listening (a participant with no address of its own, reached
	// only through links).
	ListenAddress string `json:"listenAddress"`
	// TopologyPath is a JSON-encoded topology.Topology describing every
	// member of the transactions this node will service.
	TopologyPath string `json:"topologyPath"`
	// StoragePath, if non-empty, switches from an in-memory store to a
	// store.DurableStore rooted at this directory.
	StoragePath string `json:"storagePath,omitempty"`
	// AlwaysApprove makes the demo node approve every promise and commit it
	// is asked about; false runs it as a NeverApprove holdout, useful for
	// exercising the nopromise/nocommit path against real peers.
	AlwaysApprove bool `json:"alwaysApprove"`

	participant.Config
}

func (c RunConfig) Check() error {
	if c.KeyPath == "" {
		return fmt.Errorf("keyPath must be set")
	}
	if c.TopologyPath == "" {
		return fmt.Errorf("topologyPath must be set")
	}
	return c.Config.Check()
}

// loadTopology reads a JSON-encoded topology.Topology from path.
func loadTopology(path string) (*topology.Topology, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open topology file: %v", err)
	}
	defer file.Close()
	var t topology.Topology
	if err := json.NewDecoder(file).Decode(&t); err != nil {
		return nil, fmt.Errorf("could not parse topology file: %v", err)
	}
	return &t, nil
}
