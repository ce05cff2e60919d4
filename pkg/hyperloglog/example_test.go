package hyperloglog_test

import (
	"fmt"

	"github.com/fidde/dstream/pkg/hyperloglog"
)

// Example shows basic HyperLogLog usage.
func Example() {
	hll := hyperloglog.New(14)

	hll.Add("user_1")
	hll.Add("user_2")
	hll.Add("user_3")
	hll.Add("user_1") // Duplicate

	fmt.Printf("Unique users: ~%d\n", hll.Count())
	// Output: Unique users: ~3
}

// Example_metricLabels shows tracking the cardinality of a nominal
// attribute's observed values, as pkg/record does per dimension.
func Example_metricLabels() {
	type AttributeInfo struct {
		Name     string
		Trackers map[string]*hyperloglog.HyperLogLog
	}

	attr := AttributeInfo{
		Name:     "service.name",
		Trackers: make(map[string]*hyperloglog.HyperLogLog),
	}

	attr.Trackers["region"] = hyperloglog.New(14)
	attr.Trackers["tier"] = hyperloglog.New(14)

	records := []map[string]string{
		{"region": "us-east", "tier": "edge"},
		{"region": "us-west", "tier": "core"},
		{"region": "us-east", "tier": "edge"}, // Duplicate
		{"region": "eu-central", "tier": "core"},
	}

	for _, labels := range records {
		for dim, value := range labels {
			if hll, exists := attr.Trackers[dim]; exists {
				hll.Add(value)
			}
		}
	}

	fmt.Printf("Attribute: %s\n", attr.Name)
	fmt.Printf("  region cardinality: ~%d\n", attr.Trackers["region"].Count())
	fmt.Printf("  tier cardinality: ~%d\n", attr.Trackers["tier"].Count())
	// Output:
	// Attribute: service.name
	//   region cardinality: ~3
	//   tier cardinality: ~2
}
