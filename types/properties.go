package types

import (
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"

	"github.com/zeu5/rps-arena/util"
	"k8s.io/klog/v2"
)

// PropertyDesc is a named check on a trace, returning the tick at which it holds
type PropertyDesc struct {
	Name  string
	Check func(*Trace) (bool, int)
}

// MonitorProperty turns a monitor into a property, holding at the end of the satisfying prefix
func MonitorProperty(name string, m *Monitor) PropertyDesc {
	return PropertyDesc{
		Name: name,
		Check: func(t *Trace) (bool, int) {
			prefix, ok := m.Check(t)
			if !ok {
				return false, -1
			}
			return true, prefix.Len()
		},
	}
}

// PropertyOccurrences of one experiment
type PropertyOccurrences struct {
	// First trial where the property held
	First map[string]int `json:"first"`
	// Count of trials where the property held
	Count map[string]int `json:"count"`
}

type propertyAnalyzer struct {
	savePath   string
	properties []PropertyDesc
	occ        *PropertyOccurrences
}

// PropertyAnalyzer checks every property on every trace, the satisfying traces are saved
// under savePath when it is not empty
func PropertyAnalyzer(savePath string, properties ...PropertyDesc) AnalyzerConstructor {
	return func() Analyzer {
		a := &propertyAnalyzer{savePath: savePath, properties: properties}
		a.Reset()
		return a
	}
}

func (a *propertyAnalyzer) Analyze(run, trial int, experiment string, t *Trace) {
	for _, p := range a.properties {
		holds, tick := p.Check(t)
		if !holds {
			continue
		}
		if _, ok := a.occ.First[p.Name]; !ok {
			a.occ.First[p.Name] = trial
		}
		a.occ.Count[p.Name] += 1
		if a.savePath == "" {
			continue
		}
		tracePath := path.Join(a.savePath, strconv.Itoa(run)+"_"+experiment+"_"+p.Name+"_"+strconv.Itoa(trial)+"_tick"+strconv.Itoa(tick)+".json")
		if err := util.AppendJSONLine(tracePath, t); err != nil {
			klog.Errorf("saving trace for property %s: %v", p.Name, err)
		}
	}
}

func (a *propertyAnalyzer) DataSet() DataSet {
	return a.occ
}

func (a *propertyAnalyzer) Reset() {
	a.occ = &PropertyOccurrences{
		First: make(map[string]int),
		Count: make(map[string]int),
	}
}

// PropertyComparator prints the occurrences and saves them as json
func PropertyComparator(out io.Writer, savePath string) Comparator {
	return func(run, trials int, names []string, ds []DataSet) {
		data := make(map[string]*PropertyOccurrences)
		for i, exp := range names {
			occ, ok := ds[i].(*PropertyOccurrences)
			if !ok {
				continue
			}
			data[exp] = occ
			if out == nil {
				continue
			}
			fmt.Fprintf(out, "For run:%d, experiment: %s\n", run, exp)
			props := make([]string, 0, len(occ.Count))
			for p := range occ.Count {
				props = append(props, p)
			}
			sort.Strings(props)
			for _, p := range props {
				fmt.Fprintf(out, "\tProperty: %s, First trial: %d, Held: %d/%d\n", p, occ.First[p], occ.Count[p], trials)
			}
		}
		bs, err := json.Marshal(data)
		if err != nil {
			return
		}
		if err := util.WriteToFile(path.Join(savePath, strconv.Itoa(run)+"_properties.json"), string(bs)); err != nil {
			klog.Errorf("saving properties: %v", err)
		}
	}
}
