package help

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestColdstartYAML_Parses(t *testing.T) {
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(ColdstartYAML), &doc); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	for _, key := range []string{"commands", "key_files", "invariants", "exit_codes"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("ColdstartYAML missing %q", key)
		}
	}
}
