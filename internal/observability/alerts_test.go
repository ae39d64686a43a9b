package observability

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

var metricName = regexp.MustCompile(`khata_[a-z_]+`)

// Metric names exported by this binary and the worker.
var exportedMetrics = map[string]bool{
	"khata_http_requests_total":           true,
	"khata_http_request_duration_seconds": true,
	"khata_ledger_operations_total":       true,
	"khata_jobs_total":                    true,
	"khata_jobs_failures_total":           true,
	"khata_job_duration_seconds":          true,
}

func TestAlertRules(t *testing.T) {
	path := filepath.Join("..", "..", "deploy", "prometheus", "alerts", "khata.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read alert file: %v", err)
	}

	var rulesFile alertSpec
	if err := yaml.Unmarshal(data, &rulesFile); err != nil {
		t.Fatalf("failed to unmarshal alert file: %v", err)
	}
	if len(rulesFile.Groups) != 1 || rulesFile.Groups[0].Name != "khata" {
		t.Fatalf("expected a single khata alert group, got %+v", rulesFile.Groups)
	}

	expected := map[string]string{
		"HighErrorRate":       "critical",
		"LedgerContention":    "warning",
		"WelcomeMailFailures": "warning",
	}
	rules := rulesFile.Groups[0].Rules
	if len(rules) != len(expected) {
		t.Fatalf("expected %d rules, got %d", len(expected), len(rules))
	}

	for _, rule := range rules {
		severity, ok := expected[rule.Alert]
		if !ok {
			t.Fatalf("unexpected rule %q", rule.Alert)
		}
		if rule.Labels["severity"] != severity {
			t.Fatalf("rule %s severity mismatch: %s", rule.Alert, rule.Labels["severity"])
		}
		if rule.Annotations["summary"] == "" || rule.Annotations["description"] == "" || rule.Annotations["runbook"] == "" {
			t.Fatalf("rule %s must include summary, description and runbook annotations", rule.Alert)
		}
		if rule.For == "" {
			t.Fatalf("rule %s must define a hold duration", rule.Alert)
		}
		names := metricName.FindAllString(rule.Expr, -1)
		if len(names) == 0 {
			t.Fatalf("rule %s does not reference any khata metric", rule.Alert)
		}
		for _, name := range names {
			if !exportedMetrics[name] {
				t.Fatalf("rule %s references unknown metric %s", rule.Alert, name)
			}
		}
	}
}
