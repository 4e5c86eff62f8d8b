package content

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
)

// wordCountTolerance is how far a model-reported count may drift from the
// counted value before it is ignored.
const wordCountTolerance = 0.10

var linkMarker = regexp.MustCompile(`\[Link:\s*[^\]]*\]`)

// CountWords counts whitespace-separated words, ignoring [Link: url] markers.
func CountWords(text string) int {
	return len(strings.Fields(linkMarker.ReplaceAllString(text, " ")))
}

// SectionWords counts the words of a section's content, FAQ answers and CTA.
func SectionWords(s model.Section) int {
	n := CountWords(s.Content) + CountWords(s.CTA)
	for _, f := range s.FAQs {
		n += CountWords(f.Answer)
	}
	return n
}

// reconcileWordCount returns the reported count when it is a positive number
// close to the counted one, and the counted value otherwise. Models tend to
// echo the requested target instead of the real length.
func reconcileWordCount(reported json.RawMessage, counted int) int {
	n, ok := parseReportedCount(reported)
	if !ok || n <= 0 || counted == 0 {
		return counted
	}
	diff := float64(n - counted)
	if diff < 0 {
		diff = -diff
	}
	if diff > wordCountTolerance*float64(counted) {
		return counted
	}
	return n
}

func parseReportedCount(raw json.RawMessage) (int, bool) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f), true
	}
	return 0, false
}
