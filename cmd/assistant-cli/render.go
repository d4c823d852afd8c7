package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spherical-ai/spherical/libs/commerce-assistant/pkg/client"
)

// toClientContext converts a locally produced envelope into the SDK shape so
// local and remote answers render the same way.
func toClientContext(v interface{}) (client.Context, error) {
	var out client.Context
	data, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("encode context: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decode context: %w", err)
	}
	return out, nil
}

// itemTable lays out items for the table printer. Mixed kinds are not
// produced by any route, so the first item picks the layout.
func itemTable(items []client.Item) ([]string, [][]string) {
	if len(items) == 0 {
		return nil, nil
	}
	var rows [][]string
	switch items[0].Kind {
	case "order":
		for _, it := range items {
			if o := it.Order; o != nil {
				rows = append(rows, []string{o.Number, o.Status, fmt.Sprintf("%.2f", o.Total), orderLines(o.Items), o.CreatedAt.Format("2006-01-02")})
			}
		}
		return []string{"ORDER", "STATUS", "TOTAL", "ITEMS", "PLACED"}, rows
	case "user":
		for _, it := range items {
			if u := it.User; u != nil {
				rows = append(rows, []string{u.Name, u.Email, u.Phone, u.Address})
			}
		}
		return []string{"NAME", "EMAIL", "PHONE", "ADDRESS"}, rows
	default:
		for i, it := range items {
			if p := it.Product; p != nil {
				rows = append(rows, []string{
					fmt.Sprintf("%d", i+1), p.Title, p.Brand, p.Category,
					fmt.Sprintf("%.0f", p.Price), fmt.Sprintf("%.1f", p.Rating), strings.Join(it.MatchedSpecs, ", "),
				})
			}
		}
		return []string{"#", "TITLE", "BRAND", "CATEGORY", "PRICE", "RATING", "MATCHED"}, rows
	}
}

func orderLines(lines []client.OrderLine) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.Quantity > 1 {
			parts = append(parts, fmt.Sprintf("%s x%d", l.Title, l.Quantity))
			continue
		}
		parts = append(parts, l.Title)
	}
	return strings.Join(parts, "; ")
}

func filterSummary(filters map[string]interface{}) string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, filters[k]))
	}
	return strings.Join(parts, " ")
}

// renderContext prints a fused context.
func renderContext(ui *UI, fc client.Context, latencyMs int64) {
	ui.Section("Intent")
	ui.KeyValue("Type", fc.Intent.Type)
	ui.KeyValue("Confidence", fmt.Sprintf("%.2f", fc.Intent.Confidence))
	ui.KeyValue("Reason", fc.Intent.Reason)
	if len(fc.Intent.Slots) > 0 {
		ui.KeyValue("Slots", filterSummary(fc.Intent.Slots))
	}

	ui.Section("Retrieval")
	ui.KeyValue("Route", fc.Route)
	ui.KeyValue("Context type", fc.Type)
	ui.KeyValue("Retrieval", fc.RetrievalType)
	if len(fc.Metadata.AppliedFilters) > 0 {
		ui.KeyValue("Filters", filterSummary(fc.Metadata.AppliedFilters))
	}
	ui.KeyValue("Latency", fmt.Sprintf("%dms", latencyMs))

	if fc.Metadata.Clarification != "" {
		ui.Warning("%s", fc.Metadata.Clarification)
	}
	if fc.Error != "" {
		ui.Warning("Retrieval degraded: %s", fc.Error)
	}

	if len(fc.Items) == 0 {
		ui.Info("No items retrieved")
		return
	}
	ui.Section(fmt.Sprintf("Items (%d)", len(fc.Items)))
	headers, rows := itemTable(fc.Items)
	ui.Table(headers, rows)
}
