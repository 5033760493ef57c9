package stream

import (
	"fmt"
	"strings"
)

// ParsePolicy decides what happens to a complete data line that is not
// valid JSON.
type ParsePolicy int

const (
	// PolicyBuffer keeps the line and prepends it to the next chunk, on the
	// assumption that the frame was split by a stray line break.
	PolicyBuffer ParsePolicy = iota
	// PolicyFail aborts the stream with a *ParseError.
	PolicyFail
)

// String returns the config spelling of the policy.
func (p ParsePolicy) String() string {
	switch p {
	case PolicyBuffer:
		return "buffer"
	case PolicyFail:
		return "fail"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicyFromString maps "buffer" or "fail" to a ParsePolicy. The empty
// string selects PolicyBuffer.
func ParsePolicyFromString(s string) (ParsePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "buffer":
		return PolicyBuffer, nil
	case "fail":
		return PolicyFail, nil
	default:
		return 0, fmt.Errorf("unknown parse policy %q (want buffer or fail)", s)
	}
}
