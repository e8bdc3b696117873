package analysis

import (
	"fmt"
	"strings"
)

// DataFormatError reports an input table the engine cannot interpret.
type DataFormatError struct {
	Dataset string
	Fields  []string
	Reason  string
}

func (e *DataFormatError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", e.Dataset, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Dataset, e.Reason, strings.Join(e.Fields, ", "))
}

// ConfigurationError lists every invalid parameter found by Params.Validate.
type ConfigurationError struct {
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return "invalid analysis parameters: " + strings.Join(e.Problems, "; ")
}

func missingFields(dataset string, fields ...string) *DataFormatError {
	return &DataFormatError{Dataset: dataset, Fields: fields, Reason: "missing required columns"}
}
