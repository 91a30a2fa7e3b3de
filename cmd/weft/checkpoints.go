// Copyright 2026 Tolga Akin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"

	"github.com/tolgaakin/weft/pkg/checkpoint"
	"github.com/tolgaakin/weft/pkg/config"
)

// CheckpointsCmd groups checkpoint inspection commands.
type CheckpointsCmd struct {
	List CheckpointsListCmd `cmd:"" help:"List an agent's checkpoints."`
}

// CheckpointsListCmd lists stored checkpoints.
type CheckpointsListCmd struct {
	Agent      string `required:"" help:"Agent id."`
	Tombstones bool   `help:"Include tombstone checkpoints."`
}

func (c *CheckpointsListCmd) Run(cli *CLI) error {
	cfg, err := cli.loadConfig()
	if err != nil {
		return err
	}

	provider, closeProvider, err := openProvider(cfg)
	if err != nil {
		return err
	}
	defer closeProvider()

	var filter checkpoint.Filter
	if !c.Tombstones {
		filter = checkpoint.SkipTombstones()
	}

	all, err := provider.GetCheckpoints(context.Background(), c.Agent, filter)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Println("no checkpoints")
		return nil
	}

	for _, d := range all {
		marker := ""
		if d.IsTombstone() {
			marker = " (tombstone)"
		}
		fmt.Printf("%s  %s  node=%s  v%d  messages=%d%s\n",
			d.CreatedAt.Format("2006-01-02 15:04:05"),
			d.CheckpointID, d.NodeID, d.Version, len(d.MessageHistory), marker)
	}
	return nil
}

func openProvider(cfg *config.Config) (checkpoint.StorageProvider, func(), error) {
	switch cfg.Checkpoints.Backend {
	case "file":
		return checkpoint.NewFileProvider(cfg.Checkpoints.Root), func() {}, nil
	case "sqlite":
		provider, err := checkpoint.OpenSQLProvider(cfg.Checkpoints.Path)
		if err != nil {
			return nil, nil, err
		}
		return provider, func() { provider.Close() }, nil
	default:
		return checkpoint.NewMemoryProvider(), func() {}, nil
	}
}
