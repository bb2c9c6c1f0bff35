package styles

import (
	"strings"
	"testing"
)

func TestStatusIndicator_ContainsStatus(t *testing.T) {
	for _, status := range []string{"running", "down", "unknown", "aborted", "decommissioning", "whatever"} {
		if got := StatusIndicator(status); !strings.Contains(got, status) {
			t.Errorf("StatusIndicator(%q) = %q, missing status text", status, got)
		}
	}
}
