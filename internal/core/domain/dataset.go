package domain

// DatasetDescriptor describes one point dataset stored as a directory of
// parquet files.
type DatasetDescriptor struct {
	Name      string `json:"name" mapstructure:"name"`
	Directory string `json:"directory" mapstructure:"directory"`
	LatColumn string `json:"lat_col" mapstructure:"lat_col"`
	LonColumn string `json:"lon_col" mapstructure:"lon_col"`
}

// FailurePolicy decides what a tile request does when scanning fails.
type FailurePolicy int

const (
	// DegradeEmpty answers with an empty tile and logs the failure.
	DegradeEmpty FailurePolicy = iota
	// FailFast propagates the storage error to the caller.
	FailFast
)

func (p FailurePolicy) String() string {
	switch p {
	case FailFast:
		return "fail_fast"
	default:
		return "degrade_empty"
	}
}

// ParseFailurePolicy maps a configuration string to a policy.
func ParseFailurePolicy(s string) (FailurePolicy, bool) {
	switch s {
	case "", "degrade_empty":
		return DegradeEmpty, true
	case "fail_fast":
		return FailFast, true
	}
	return DegradeEmpty, false
}
