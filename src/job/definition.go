// Package job runs one pipeline job: an ordered list of steps executed
// strictly in sequence inside the job's own workspace and environment.
package job

import (
	"fmt"
	"strings"

	"github.com/sofmeright/qualitygate/src/config"
	"github.com/sofmeright/qualitygate/src/provision"
)

// Definition is the declarative record of a job. One executor interprets
// every definition; jobs differ only in data.
type Definition struct {
	Name     string
	Kind     config.JobKind
	Runtime  string
	Extras   provision.Extras
	Cache    bool // restore and save the dataset cache
	Coverage bool // upload the coverage artifact
	TestArgs []string
}

func (d Definition) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s, runtime %s", d.Name, d.Kind, d.Runtime)
	if d.Kind == config.JobKindTest {
		extras := d.Extras.String()
		if extras == "" {
			extras = "none"
		}
		fmt.Fprintf(&b, ", extras %s", extras)
	}
	b.WriteString(")")
	return b.String()
}

// Standard builds the configured job definitions. With the default
// configuration these are Lint, Test-minimal {test} and Test-full {deep,test}.
func Standard(cfg *config.Config) []Definition {
	defs := make([]Definition, 0, len(cfg.Jobs))
	for _, jc := range cfg.Jobs {
		d := Definition{
			Name:    jc.Name,
			Kind:    jc.Kind,
			Runtime: cfg.Runtime.Version,
		}
		if jc.Kind == config.JobKindTest {
			d.Extras = provision.NewExtras(jc.Extras...)
			d.TestArgs = append([]string(nil), jc.TestArgs...)
		}
		d.Cache = jc.UsesCache() && cfg.Cache.Enabled
		d.Coverage = jc.UploadsCoverage() && cfg.Coverage.Enabled
		defs = append(defs, d)
	}
	return defs
}

// Names returns the definition names in order.
func Names(defs []Definition) []string {
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	return names
}

// Find returns the definition called name.
func Find(defs []Definition, name string) (Definition, bool) {
	for _, d := range defs {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return Definition{}, false
}
