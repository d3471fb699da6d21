package types

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/zeu5/rps-arena/util"
)

// VisitGraph counts the transitions between abstract states observed in traces
type VisitGraph struct {
	Nodes map[string]*Node `json:"nodes"`

	transitions int
}

func NewVisitGraph() *VisitGraph {
	return &VisitGraph{
		Nodes: make(map[string]*Node),
	}
}

func (v *VisitGraph) node(key string) (*Node, bool) {
	n, ok := v.Nodes[key]
	if !ok {
		n = &Node{Key: key, Next: make(map[string]map[string]int)}
		v.Nodes[key] = n
	}
	return n, !ok
}

// Update records the transition, returns true when from was never visited before
func (v *VisitGraph) Update(from, action, to string) bool {
	fromNode, isNew := v.node(from)
	v.node(to)
	fromNode.Visits += 1
	if _, ok := fromNode.Next[action]; !ok {
		fromNode.Next[action] = make(map[string]int)
	}
	if fromNode.Next[action][to] == 0 {
		v.transitions += 1
	}
	fromNode.Next[action][to] += 1
	return isNew
}

// States visited so far
func (v *VisitGraph) States() int {
	return len(v.Nodes)
}

// Transitions is the number of distinct (state, action, next state) seen
func (v *VisitGraph) Transitions() int {
	return v.transitions
}

func (v *VisitGraph) Visits() map[string]int {
	results := make(map[string]int)
	for k, n := range v.Nodes {
		results[k] = n.Visits
	}
	return results
}

// Record writes the graph as json
func (v *VisitGraph) Record(filePath string) error {
	bs, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encoding visit graph")
	}
	return util.WriteToFile(filePath, string(bs))
}

type Node struct {
	Key    string `json:"key"`
	Visits int    `json:"visits"`
	// action -> next state -> count
	Next map[string]map[string]int `json:"next"`
}
