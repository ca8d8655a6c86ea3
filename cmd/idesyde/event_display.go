package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/forsyde/idesyde-orchestrator/internal/events"
)

// displayEvent prints a journaled event in a two-line format.
func displayEvent(event *events.Event) {
	if shouldSkipEvent(event) {
		return
	}

	emoji := getEventEmoji(event)
	severityColor := getSeverityColor(event.Severity)
	timestamp := event.Timestamp.Local().Format("15:04:05.000")
	eventType := color.New(color.FgMagenta).Sprint(event.Type)

	maxMessageLen := 70 - len(string(event.Type))
	message := truncateString(event.Message, maxMessageLen)

	fmt.Printf("%s [%s] %s: %s\n", emoji, timestamp, eventType, severityColor.Sprint(message))

	if metadata := extractEventMetadata(event); metadata != "" {
		fmt.Printf("  %s\n", color.New(color.FgHiBlack).Sprint(metadata))
	}
}

// getEventEmoji returns the icon for an event type, falling back to one per severity.
func getEventEmoji(event *events.Event) string {
	switch event.Type {
	case events.EventTypeRunStarted:
		return "🚀"
	case events.EventTypeRunCompleted:
		if event.Severity == events.SeverityError {
			return "❌"
		}
		return "🏁"
	case events.EventTypeStepStarted, events.EventTypeStepCompleted:
		return "🔍"
	case events.EventTypeModuleInvoked:
		return "🔧"
	case events.EventTypeFixpointReached:
		return "🎯"
	case events.EventTypeDominanceComputed:
		return "🏆"
	case events.EventTypeBidReceived, events.EventTypeExplorerSelected:
		return "🤝"
	case events.EventTypeExplorationStarted, events.EventTypeExplorationProgress, events.EventTypeExplorationCompleted:
		return "🧭"
	case events.EventTypeSolutionFound:
		return "✨"
	}

	switch event.Severity {
	case events.SeverityInfo:
		return "ℹ️"
	case events.SeverityWarning:
		return "⚠️"
	case events.SeverityError:
		return "❌"
	default:
		return "•"
	}
}

func getSeverityColor(severity events.EventSeverity) *color.Color {
	switch severity {
	case events.SeverityInfo:
		return color.New(color.FgCyan)
	case events.SeverityWarning:
		return color.New(color.FgYellow)
	case events.SeverityError:
		return color.New(color.FgRed)
	default:
		return color.New(color.FgWhite)
	}
}

// extractEventMetadata picks the few data fields worth showing for each event type.
func extractEventMetadata(event *events.Event) string {
	var fields []string

	switch event.Type {
	case events.EventTypeStepCompleted:
		fields = []string{
			fmt.Sprintf("step %d", getIntField(event.Data, "step", 0)),
			fmt.Sprintf("+%d", getIntField(event.Data, "new_headers", 0)),
			fmt.Sprintf("%d total", getIntField(event.Data, "total", 0)),
		}

	case events.EventTypeModuleInvoked, events.EventTypeModuleFailed:
		fields = []string{
			getStringField(event.Data, "module_id", "unknown"),
			fmt.Sprintf("%d headers", getIntField(event.Data, "headers", 0)),
			formatDurationMs(getIntField(event.Data, "duration_ms", 0)),
		}
		if event.Type == events.EventTypeModuleFailed {
			fields = append(fields, fmt.Sprintf("exit %d", getIntField(event.Data, "exit_code", -1)))
		}

	case events.EventTypeBidReceived, events.EventTypeExplorerSelected:
		explore := "✗ cannot explore"
		if getBoolField(event.Data, "can_explore", false) {
			explore = "✓ can explore"
		}
		fields = []string{getStringField(event.Data, "module_id", "unknown"), explore, formatCriteria(event.Data["criteria"])}

	case events.EventTypeSolutionFound:
		fields = []string{
			getStringField(event.Data, "module_id", "unknown"),
			fmt.Sprintf("#%d", getIntField(event.Data, "index", 0)),
			truncateString(getStringField(event.Data, "header_path", ""), 40),
		}

	case events.EventTypeExplorationProgress, events.EventTypeExplorationCompleted:
		fields = []string{
			getStringField(event.Data, "module_id", "unknown"),
			fmt.Sprintf("%d solutions", getIntField(event.Data, "solutions", 0)),
			formatDurationMs(getIntField(event.Data, "elapsed_ms", 0)),
			getStringField(event.Data, "stop_reason", ""),
		}

	case events.EventTypeRunCompleted:
		fields = []string{
			fmt.Sprintf("%d steps", getIntField(event.Data, "steps", 0)),
			fmt.Sprintf("%d dominant", getIntField(event.Data, "dominant", 0)),
			fmt.Sprintf("%d solutions", getIntField(event.Data, "solutions", 0)),
			formatDurationMs(getIntField(event.Data, "duration_ms", 0)),
		}

	default:
		if err, ok := event.Data["error"].(string); ok {
			fields = append(fields, truncateString(err, 50))
		}
	}

	return truncateString(joinFields(fields), 76)
}

func formatCriteria(v interface{}) string {
	criteria, ok := v.(map[string]interface{})
	if !ok || len(criteria) == 0 {
		return ""
	}
	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%g", k, getFloatField(criteria, k, 0)))
	}
	return strings.Join(parts, " ")
}

func getStringField(data map[string]interface{}, key, defaultValue string) string {
	if val, ok := data[key].(string); ok {
		return val
	}
	return defaultValue
}

func getIntField(data map[string]interface{}, key string, defaultValue int) int {
	if val, ok := data[key].(int); ok {
		return val
	}
	if val, ok := data[key].(float64); ok {
		return int(val)
	}
	return defaultValue
}

func getFloatField(data map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := data[key].(float64); ok {
		return val
	}
	if val, ok := data[key].(int); ok {
		return float64(val)
	}
	return defaultValue
}

func getBoolField(data map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := data[key].(bool); ok {
		return val
	}
	return defaultValue
}

// formatDurationMs formats milliseconds into a human-readable duration.
func formatDurationMs(ms int) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	return fmt.Sprintf("%.1fm", float64(ms)/60000)
}

// joinFields joins the non-empty fields with " | ".
func joinFields(fields []string) string {
	nonEmpty := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			nonEmpty = append(nonEmpty, f)
		}
	}
	return strings.Join(nonEmpty, " | ")
}

// shouldSkipEvent hides events that only repeat what the next one says.
func shouldSkipEvent(event *events.Event) bool {
	switch event.Type {
	case events.EventTypeStepStarted, events.EventTypeExplorationProgress:
		return true
	}
	return false
}

// truncateString shortens s to maxLen runes, marking the cut with "...".
func truncateString(s string, maxLen int) string {
	if maxLen <= 3 {
		maxLen = 3
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
