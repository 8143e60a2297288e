package ui

import (
	"fmt"
	"time"
)

// TestSummary renders a one-line result for a finished test bootstrap.
func TestSummary(file string, exitCode int, took time.Duration) string {
	d := DimStyle.Render(fmt.Sprintf("(%s)", took.Round(time.Millisecond)))
	if exitCode == 0 {
		return fmt.Sprintf("%s %s %s", SuccessStyle.Render("PASS"), file, d)
	}
	return fmt.Sprintf("%s %s exit status %d %s", ErrorStyle.Render("FAIL"), file, exitCode, d)
}
