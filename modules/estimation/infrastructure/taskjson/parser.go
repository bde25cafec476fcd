// Package taskjson parses the flat JSON task-dump format. It is the
// bundled implementation of the parser boundary; binary project formats
// plug in behind the same interface.
package taskjson

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"

	"github.com/costline/costline/modules/estimation/domain/task"
)

type document struct {
	Tasks     []task.Record `json:"tasks"`
	Resources []string      `json:"resources"`
}

type Parser struct{}

func New() *Parser { return &Parser{} }

func (p *Parser) Parse(_ context.Context, data []byte) (*task.ParseResult, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "failed to decode task dump")
	}
	resourceCount := len(doc.Resources)
	if resourceCount == 0 {
		distinct := map[string]bool{}
		for _, t := range doc.Tasks {
			for _, a := range t.Assignments {
				distinct[a.ResourceCode] = true
			}
		}
		resourceCount = len(distinct)
	}
	return &task.ParseResult{Tasks: doc.Tasks, ResourceCount: resourceCount}, nil
}
