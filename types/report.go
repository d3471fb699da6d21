package types

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// ReportsPrintConfig controls which trial reports are written to disk
type ReportsPrintConfig struct {
	PrintStd      bool // print the report standard representation
	PrintTimeline bool // print the report timeline representation

	PrintIfError bool // print the report if the trial failed

	Sampling float32 // rate of randomly printed reports (for successful trials)
}

func RepConfigOff() *ReportsPrintConfig {
	return &ReportsPrintConfig{}
}

// standard printing: reports of failed trials and 2% of the successful ones
func RepConfigStandard() *ReportsPrintConfig {
	return &ReportsPrintConfig{
		PrintStd:     true,
		PrintIfError: true,
		Sampling:     0.02,
	}
}

// TrialReport collects timing and counter entries during one trial
type TrialReport struct {
	TrialID        string
	ExperimentName string
	tick           uint64

	nextIndex int
	startTime time.Time

	lock *sync.Mutex

	Timeline   []*TrialReportEntry
	TimeValues map[string][]*TrialReportEntry
	IntValues  map[string][]*TrialReportEntry
	Logs       map[string]string
}

func NewTrialReport(trialID, experimentName string) *TrialReport {
	return &TrialReport{
		TrialID:        trialID,
		ExperimentName: experimentName,
		startTime:      time.Now(),
		lock:           new(sync.Mutex),
		Timeline:       make([]*TrialReportEntry, 0),
		TimeValues:     make(map[string][]*TrialReportEntry),
		IntValues:      make(map[string][]*TrialReportEntry),
		Logs:           make(map[string]string),
	}
}

// SetTick sets the tick attached to the next entries
func (r *TrialReport) SetTick(tick uint64) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.tick = tick
}

func (r *TrialReport) addEntry(value interface{}, entryType, caller string, values map[string][]*TrialReportEntry) {
	entry := &TrialReportEntry{
		Index:     r.nextIndex,
		Timestamp: time.Since(r.startTime),
		Tick:      r.tick,
		EntryType: entryType,
		Caller:    caller,
		Value:     value,
	}
	r.nextIndex += 1
	r.Timeline = append(r.Timeline, entry)
	values[entryType] = append(values[entryType], entry)
}

// add a new entry of type int to the report
func (r *TrialReport) AddIntEntry(value int, entryType string, caller string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.addEntry(value, entryType, caller, r.IntValues)
}

// add a new entry of type time.Duration to the report
func (r *TrialReport) AddTimeEntry(value time.Duration, entryType string, caller string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.addEntry(value, entryType, caller, r.TimeValues)
}

func (r *TrialReport) AddLog(value string, key string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.Logs[key] = value
}

// MeanTime of the entries of the given type, zero if there are none
func (r *TrialReport) MeanTime(entryType string) time.Duration {
	r.lock.Lock()
	defer r.lock.Unlock()
	entries := r.TimeValues[entryType]
	if len(entries) == 0 {
		return 0
	}
	var total time.Duration
	for _, e := range entries {
		total += e.Value.(time.Duration)
	}
	return total / time.Duration(len(entries))
}

// return a string representation of the report timeline
func (r *TrialReport) StringTimeline() string {
	r.lock.Lock()
	defer r.lock.Unlock()
	result := fmt.Sprintf("Trial: %s\nLength: %d\n", r.TrialID, len(r.Timeline))
	return result + StringEntriesList(r.Timeline)
}

// return a string representation of the report entries per type
func (r *TrialReport) StringPerType() string {
	r.lock.Lock()
	defer r.lock.Unlock()
	result := fmt.Sprintf("Trial: %s\n", r.TrialID)
	for _, entryType := range sortedKeys(r.TimeValues) {
		entries := r.TimeValues[entryType]
		result = fmt.Sprintf("%s\n%s [%d]:\n%s", result, entryType, len(entries), StringEntriesListLite(entries))
	}
	for _, entryType := range sortedKeys(r.IntValues) {
		entries := r.IntValues[entryType]
		result = fmt.Sprintf("%s\n%s [%d]:\n%s", result, entryType, len(entries), StringEntriesListLite(entries))
	}
	for key, value := range r.Logs {
		result = fmt.Sprintf("%s\n%s :\n%s", result, key, value)
	}
	return result
}

func sortedKeys(m map[string][]*TrialReportEntry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entry of the Report
type TrialReportEntry struct {
	Index     int           // index of the entry, managed by the report
	Timestamp time.Duration // since the report was created

	Tick      uint64
	EntryType string
	Caller    string      // the method adding the entry
	Value     interface{} // int or time.Duration
}

func (en *TrialReportEntry) String() string {
	switch v := en.Value.(type) {
	case time.Duration:
		return fmt.Sprintf("[ %6d | %5d | %3d ] %20s : %12s (%20s)", en.Index, en.Timestamp.Milliseconds(), en.Tick, en.EntryType, v.String(), en.Caller)
	case int:
		return fmt.Sprintf("[ %6d | %5d | %3d ] %20s : %5d (%20s)", en.Index, en.Timestamp.Milliseconds(), en.Tick, en.EntryType, v, en.Caller)
	default:
		return "wrong entry type"
	}
}

func (en *TrialReportEntry) StringLite() string {
	switch v := en.Value.(type) {
	case time.Duration:
		return fmt.Sprintf("[ %5d | %3d ] %12s (%20s)", en.Timestamp.Milliseconds(), en.Tick, v.String(), en.Caller)
	case int:
		return fmt.Sprintf("[ %5d | %3d ] %5d (%20s)", en.Timestamp.Milliseconds(), en.Tick, v, en.Caller)
	default:
		return "wrong entry type"
	}
}

// return a string representation of the list of entries
func StringEntriesList(list []*TrialReportEntry) string {
	result := ""
	for _, entry := range list {
		result = fmt.Sprintf("%s%s\n", result, entry.String())
	}
	return result
}

func StringEntriesListLite(list []*TrialReportEntry) string {
	result := ""
	for _, entry := range list {
		result = fmt.Sprintf("%s%s\n", result, entry.StringLite())
	}
	return result
}
