package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
)

// Generated is a parsed model answer: the typed plan plus the exact JSON.
type Generated struct {
	Plan     Plan
	Raw      json.RawMessage
	Provider string
}

var (
	leadingFenceRe  = regexp.MustCompile("^```(?:json|JSON)?[ \t]*\n?")
	trailingFenceRe = regexp.MustCompile("\n?[ \t]*```$")
)

// Normalize strips the code fences wrapping the model output and parses it as
// an itinerary. Fences inside the JSON are left alone. Every day must carry a
// YYYY-MM-DD date. Any failure wraps ErrInvalidAIOutput.
func Normalize(text string) (*Generated, error) {
	content := leadingFenceRe.ReplaceAllString(strings.TrimSpace(text), "")
	content = strings.TrimSpace(trailingFenceRe.ReplaceAllString(content, ""))
	if content == "" {
		return nil, fmt.Errorf("%w: empty content", ErrInvalidAIOutput)
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAIOutput, err)
	}

	rawDays, ok := top["days"]
	if !ok || bytes.Equal(bytes.TrimSpace(rawDays), []byte("null")) {
		return nil, fmt.Errorf("%w: missing days", ErrInvalidAIOutput)
	}
	var days []json.RawMessage
	if err := json.Unmarshal(rawDays, &days); err != nil {
		return nil, fmt.Errorf("%w: days is not an array", ErrInvalidAIOutput)
	}
	if len(days) == 0 {
		return nil, fmt.Errorf("%w: no days", ErrInvalidAIOutput)
	}

	var plan Plan
	if err := json.Unmarshal([]byte(content), &plan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAIOutput, err)
	}
	for i, day := range plan.Days {
		if _, err := time.Parse(dateLayout, day.Date); err != nil {
			return nil, fmt.Errorf("%w: day %d has invalid date %q", ErrInvalidAIOutput, i+1, day.Date)
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, []byte(content)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAIOutput, err)
	}

	return &Generated{Plan: plan, Raw: compact.Bytes()}, nil
}

// restoreTopLevelKeys copies back any top-level key of original that the
// revision dropped. It returns the revision unchanged when nothing is missing.
func restoreTopLevelKeys(original, revised json.RawMessage) (json.RawMessage, []string, error) {
	var orig, rev map[string]json.RawMessage
	if err := json.Unmarshal(original, &orig); err != nil {
		return revised, nil, nil
	}
	if err := json.Unmarshal(revised, &rev); err != nil {
		return nil, nil, err
	}

	var restored []string
	for k, v := range orig {
		if _, ok := rev[k]; !ok {
			rev[k] = v
			restored = append(restored, k)
		}
	}
	if len(restored) == 0 {
		return revised, nil, nil
	}
	slices.Sort(restored)

	out, err := json.Marshal(rev)
	if err != nil {
		return nil, nil, err
	}
	return out, restored, nil
}
