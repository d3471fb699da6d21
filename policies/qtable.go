package policies

import (
	"encoding/json"
	"math"
	"sync"

	"github.com/zeu5/rps-arena/util"
)

// QTable maps (state, action) keys to values, safe for concurrent use
type QTable struct {
	lock  sync.RWMutex
	table map[string]map[string]float64
}

func NewQTable() *QTable {
	return &QTable{
		table: make(map[string]map[string]float64),
	}
}

// Get returns the value, def when the pair was never set
func (q *QTable) Get(state, action string, def float64) float64 {
	q.lock.RLock()
	defer q.lock.RUnlock()
	if val, ok := q.table[state][action]; ok {
		return val
	}
	return def
}

func (q *QTable) Set(state, action string, val float64) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if _, ok := q.table[state]; !ok {
		q.table[state] = make(map[string]float64)
	}
	q.table[state][action] = val
}

func (q *QTable) HasState(state string) bool {
	q.lock.RLock()
	defer q.lock.RUnlock()
	_, ok := q.table[state]
	return ok
}

// MaxAmong returns the best action among actions, unknown pairs count as def
func (q *QTable) MaxAmong(state string, actions []string, def float64) (string, float64) {
	q.lock.RLock()
	defer q.lock.RUnlock()
	maxAction := ""
	maxVal := math.Inf(-1)
	for _, a := range actions {
		val, ok := q.table[state][a]
		if !ok {
			val = def
		}
		if val > maxVal {
			maxAction = a
			maxVal = val
		}
	}
	if maxAction == "" {
		return "", def
	}
	return maxAction, maxVal
}

func (q *QTable) MarshalJSON() ([]byte, error) {
	q.lock.RLock()
	defer q.lock.RUnlock()
	return json.Marshal(q.table)
}

func (q *QTable) UnmarshalJSON(b []byte) error {
	table := make(map[string]map[string]float64)
	if err := json.Unmarshal(b, &table); err != nil {
		return err
	}
	q.lock.Lock()
	defer q.lock.Unlock()
	q.table = table
	return nil
}

// Record writes the table as json
func (q *QTable) Record(path string) error {
	bs, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return util.WriteToFile(path, string(bs))
}
