package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const billOfSupplyPrefix = "BillOfSupplyItems::"

// bagsPattern matches "[<label>:] <n> bags x|× <weight>kg", e.g.
// "Wheat: 9 bags × 50kg @ ₹1910/qt".
var bagsPattern = regexp.MustCompile(`(?i)(?:([^:]+):)?\s*(\d+)\s*bags\s*(?:x|×)\s*([\d.]+)kg`)

type payloadShape int

const (
	payloadItemList payloadShape = iota // [ {...}, ... ]
	payloadWrapped                      // { "items": [ {...}, ... ] }
)

// billOfSupplyPayload is the decoded form of a BillOfSupplyItems description.
// Both wire shapes collapse to the same item list; shape records which one
// was seen.
type billOfSupplyPayload struct {
	shape payloadShape
	items []json.RawMessage
}

func decodeBillOfSupplyPayload(raw []byte) (billOfSupplyPayload, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return billOfSupplyPayload{}, errors.New("empty payload")
	}

	switch trimmed[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return billOfSupplyPayload{}, fmt.Errorf("decode item list: %w", err)
		}
		return billOfSupplyPayload{shape: payloadItemList, items: items}, nil
	case '{':
		var wrapper struct {
			Items json.RawMessage `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return billOfSupplyPayload{}, fmt.Errorf("decode wrapper: %w", err)
		}
		payload := billOfSupplyPayload{shape: payloadWrapped}
		if len(wrapper.Items) == 0 || string(wrapper.Items) == "null" {
			return payload, nil
		}
		if err := json.Unmarshal(wrapper.Items, &payload.items); err != nil {
			return billOfSupplyPayload{}, fmt.Errorf("decode wrapper items: %w", err)
		}
		return payload, nil
	default:
		return billOfSupplyPayload{}, fmt.Errorf("unexpected payload start %q", trimmed[0])
	}
}

// firstGrainType returns grainType from the first item only.
func (p billOfSupplyPayload) firstGrainType() (string, error) {
	if len(p.items) == 0 {
		return "", errors.New("payload has no items")
	}
	var item map[string]json.RawMessage
	if err := json.Unmarshal(p.items[0], &item); err != nil {
		return "", fmt.Errorf("decode first item: %w", err)
	}
	rawGrain, ok := item["grainType"]
	if !ok {
		return "", errors.New("first item has no grainType")
	}
	var grain string
	if err := json.Unmarshal(rawGrain, &grain); err != nil {
		return "", fmt.Errorf("decode grainType: %w", err)
	}
	if strings.TrimSpace(grain) == "" {
		return "", errors.New("grainType is blank")
	}
	return grain, nil
}

// decodeBillOfSupplyGrain extracts grainType from a prefixed, URL-encoded
// BillOfSupplyItems description.
func decodeBillOfSupplyGrain(desc string) (string, error) {
	if !strings.HasPrefix(desc, billOfSupplyPrefix) {
		return "", errors.New("missing BillOfSupplyItems prefix")
	}
	unescaped, err := url.PathUnescape(strings.TrimPrefix(desc, billOfSupplyPrefix))
	if err != nil {
		return "", fmt.Errorf("unescape payload: %w", err)
	}
	payload, err := decodeBillOfSupplyPayload([]byte(unescaped))
	if err != nil {
		return "", err
	}
	return payload.firstGrainType()
}

// parseBillOfSupplyGrain is the non-failing form of decodeBillOfSupplyGrain.
func parseBillOfSupplyGrain(desc string) (string, bool) {
	grain, err := decodeBillOfSupplyGrain(desc)
	if err != nil {
		return "", false
	}
	return grain, true
}

func parseBagsLineGrain(desc string) (string, bool) {
	match := bagsPattern.FindStringSubmatch(desc)
	if match == nil {
		return "", false
	}
	label := strings.TrimSpace(match[1])
	if label == "" {
		return "", false
	}
	return label, true
}

// resolveGrainFromDescription tries the BillOfSupplyItems payload first (only
// for prefixed descriptions), then the free-text bags pattern.
func resolveGrainFromDescription(ctx context.Context, desc string) (string, grainSource, bool) {
	if desc == "" {
		return "", "", false
	}
	log := loggerFromContext(ctx)

	if strings.HasPrefix(desc, billOfSupplyPrefix) {
		grain, err := decodeBillOfSupplyGrain(desc)
		if err == nil {
			return grain, sourcePayload, true
		}
		log.Debug().Err(err).Str("description", previewForLog(desc, 80)).Msg("payload parse fell through")
	}

	if grain, ok := parseBagsLineGrain(desc); ok {
		return grain, sourceText, true
	}
	return "", "", false
}

func previewForLog(s string, limit int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
