package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/salesops/salesops/pkg/orchestrator"
)

// Registry maps symbolic worker ids to their handlers. The external
// dispatcher resolves the orchestrator's dispatch table against a registry.
type Registry map[string]Handler

// Resolve returns the handler registered under the symbolic worker id.
func (r Registry) Resolve(worker string) (Handler, error) {
	handler, ok := r[worker]
	if !ok {
		return nil, fmt.Errorf("no handler registered for worker %s", worker)
	}
	return handler, nil
}

// DefaultRegistry returns the reference handler set, keyed by the
// orchestrator's symbolic worker ids.
func DefaultRegistry() Registry {
	return Registry{
		orchestrator.WorkerCompanySearch:  CompanySearch,
		orchestrator.WorkerContactFinder:  ContactFinder,
		orchestrator.WorkerNewsCollector:  NewsCollector,
		orchestrator.WorkerEmailGenerator: EmailGenerator,
		orchestrator.WorkerScheduler:      Scheduler,
		orchestrator.WorkerPipelineBANT:   PipelineBANT,
	}
}

// CompanySearch merges company candidates from the configured discovery
// sources.
func CompanySearch(_ context.Context, payload map[string]any) (map[string]any, error) {
	query := stringValue(payload, "query", "target accounts")
	industry := stringValue(payload, "industry", "SaaS")

	companies := []map[string]any{
		{"name": query + " Holdings", "source": "playwright"},
		{"name": industry + " Labs", "source": "selenium"},
	}
	return map[string]any{"companies": companies}, nil
}

// ContactFinder merges contact candidates from the configured discovery
// sources.
func ContactFinder(_ context.Context, payload map[string]any) (map[string]any, error) {
	domain := stringValue(payload, "domain", "example.com")

	contacts := []map[string]any{
		{"name": "Taylor Prospect", "email": "taylor@" + domain, "source": "mailscout"},
		{"name": "Jordan Lead", "email": "jordan@" + domain, "source": "theharvester"},
	}
	return map[string]any{"contacts": contacts}, nil
}

// NewsCollector collects topical articles and produces one summary per
// article.
func NewsCollector(_ context.Context, payload map[string]any) (map[string]any, error) {
	topic := stringValue(payload, "topic", "sales")
	title := titleCase(topic) + " market update"

	articles := []map[string]any{
		{"title": title, "url": "https://news.example.com/story", "source": "newsapi"},
	}
	summaries := make([]map[string]any, 0, len(articles))
	for _, article := range articles {
		summaries = append(summaries, map[string]any{
			"title":   article["title"],
			"summary": fmt.Sprintf("Summary for %s", article["title"]),
			"source":  "newspaper3k",
		})
	}
	return map[string]any{"articles": articles, "summaries": summaries}, nil
}

// EmailGenerator renders a templated outreach email.
func EmailGenerator(_ context.Context, payload map[string]any) (map[string]any, error) {
	recipient := stringValue(payload, "recipient", "Prospect")
	company := stringValue(payload, "company", "your company")

	email := map[string]any{
		"subject": "Idea for " + recipient,
		"body":    fmt.Sprintf("Hi %s, I noticed %s could benefit from SalesOps.", recipient, company),
		"channel": "email",
	}
	return map[string]any{"email": email}, nil
}

// Scheduler builds a sending cadence schedule.
func Scheduler(_ context.Context, payload map[string]any) (map[string]any, error) {
	plan, err := BuildSchedulePlan(payload, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return map[string]any{"schedule": plan}, nil
}

// PipelineBANT scores a pipeline entry on budget, authority, need and timing.
func PipelineBANT(_ context.Context, payload map[string]any) (map[string]any, error) {
	return map[string]any{"assessment": ScoreBANT(payload)}, nil
}

// BuildSchedulePlan computes the cadence schedule for a sequence of outreach
// steps. Steps are numbered from one; each step's send time is the start
// time plus cadence_days per preceding step. When the contact has replied,
// steps beyond the completed count are paused instead of scheduled.
func BuildSchedulePlan(payload map[string]any, now time.Time) (map[string]any, error) {
	cadenceDays := intValue(payload, "cadence_days", 7)
	contactReplied := boolValue(payload, "contact_replied")
	completedSteps := intValue(payload, "completed_steps", 0)

	startAt, err := parseStartAt(payload["start_at"], now)
	if err != nil {
		return nil, err
	}

	steps := sliceValue(payload, "steps")
	scheduledSteps := make([]map[string]any, 0, len(steps))
	for index, step := range steps {
		stepPayload := map[string]any{}
		if m, ok := step.(map[string]any); ok {
			for k, v := range m {
				stepPayload[k] = v
			}
		}
		number := index + 1
		if _, ok := stepPayload["step_number"]; !ok {
			stepPayload["step_number"] = number
		}

		sendAt := startAt.AddDate(0, 0, cadenceDays*index)
		if contactReplied && number > completedSteps {
			stepPayload["status"] = "paused"
			stepPayload["next_send_at"] = nil
		} else {
			stepPayload["status"] = "scheduled"
			stepPayload["next_send_at"] = orchestrator.FormatTimestamp(sendAt)
		}
		scheduledSteps = append(scheduledSteps, stepPayload)
	}

	overallStatus := "scheduled"
	if contactReplied && len(steps) > completedSteps {
		overallStatus = "paused"
	}

	return map[string]any{
		"cadence_days": cadenceDays,
		"status":       overallStatus,
		"steps":        scheduledSteps,
	}, nil
}

// ScoreBANT sums the four BANT dimensions; ten or more qualifies.
func ScoreBANT(payload map[string]any) map[string]any {
	bant := map[string]any{"budget": 3, "authority": 3, "need": 3, "timing": 3}
	if m, ok := payload["bant"].(map[string]any); ok {
		bant = m
	}

	score := 0
	for _, value := range bant {
		n, err := anyToInt(value)
		if err == nil {
			score += n
		}
	}

	return map[string]any{
		"bant":      bant,
		"score":     score,
		"qualified": score >= 10,
	}
}

func parseStartAt(value any, now time.Time) (time.Time, error) {
	switch v := value.(type) {
	case nil:
		return now, nil
	case time.Time:
		return v, nil
	case string:
		ts, err := orchestrator.ParseTimestamp(v)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid start_at: %w", err)
		}
		return ts, nil
	default:
		return time.Time{}, fmt.Errorf("invalid start_at type %T", value)
	}
}

func stringValue(payload map[string]any, key, fallback string) string {
	if v, ok := payload[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func boolValue(payload map[string]any, key string) bool {
	v, _ := payload[key].(bool)
	return v
}

func intValue(payload map[string]any, key string, fallback int) int {
	value, ok := payload[key]
	if !ok {
		return fallback
	}
	n, err := anyToInt(value)
	if err != nil {
		return fallback
	}
	return n
}

func sliceValue(payload map[string]any, key string) []any {
	v, _ := payload[key].([]any)
	return v
}

func anyToInt(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, err
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("unexpected number type %T", value)
	}
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
