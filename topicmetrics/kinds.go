package topicmetrics

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Reported metric names.
const (
	MetricMsgRateIn   = "Msg Rate In"
	MetricMsgRateOut  = "Msg Rate Out"
	MetricStorageSize = "Storage Size"
)

// DefaultKinds returns the metric kinds and topic lists reported when no
// topics file is configured.
func DefaultKinds() []Kind {
	return []Kind{
		{
			Name:  MetricMsgRateIn,
			Field: "msgRateIn",
			Topics: []string{
				"hfp-mqtt-raw/v2",
				"hfp-mqtt-raw-deduplicated/v2",
				"hfp/v2",
				"gtfs-rt/feedmessage-vehicleposition",
				"metro-ats-mqtt-raw/metro-estimate",
				"metro-ats-mqtt-raw-deduplicated/metro-estimate",
				"source-metro-ats/metro-estimate",
				"source-pt-roi/arrival",
				"source-pt-roi/departure",
				"internal-messages/pubtrans-stop-estimate",
				"internal-messages/feedmessage-tripupdate",
				"gtfs-rt/feedmessage-tripupdate",
				"internal-messages/stop-cancellation",
			},
		},
		{
			Name:  MetricMsgRateOut,
			Field: "msgRateOut",
			Topics: []string{
				"gtfs-rt/feedmessage-vehicleposition",
				"gtfs-rt/feedmessage-tripupdate",
			},
		},
		{
			Name:   MetricStorageSize,
			Field:  "storageSize",
			Topics: []string{"hfp/v2"},
		},
	}
}

// kindsFile is the topics file layout.
type kindsFile struct {
	Kinds []Kind `yaml:"kinds"`
}

// ReadKinds parses a YAML topics file of the form:
//
//	kinds:
//	  - name: Msg Rate In
//	    field: msgRateIn
//	    topics: [hfp/v2]
func ReadKinds(r io.Reader) ([]Kind, error) {
	var f kindsFile

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("error parsing topics file: %w", err)
	}

	if len(f.Kinds) == 0 {
		return nil, fmt.Errorf("topics file defines no kinds")
	}

	for i, k := range f.Kinds {
		switch {
		case k.Name == "":
			return nil, fmt.Errorf("kind %d: name must be set", i)
		case k.Field == "":
			return nil, fmt.Errorf("kind %s: field must be set", k.Name)
		case len(k.Topics) == 0:
			return nil, fmt.Errorf("kind %s: topics cannot be empty", k.Name)
		}
	}

	return f.Kinds, nil
}

// ReadKindsFile reads kinds from the YAML file at path.
func ReadKindsFile(path string) ([]Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadKinds(f)
}

// AllTopics returns the union of topics across kinds in first-seen order.
func AllTopics(kinds []Kind) []string {
	var topics []string
	seen := map[string]struct{}{}

	for _, k := range kinds {
		for _, t := range k.Topics {
			if _, exists := seen[t]; exists {
				continue
			}
			seen[t] = struct{}{}
			topics = append(topics, t)
		}
	}

	return topics
}
