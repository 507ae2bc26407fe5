package protocol

import (
	"strings"

	"github.com/Desarso/playground/models"
)

const (
	TagResponse       = "response"
	TagChatResponse   = "chat_response"
	TagPlaygroundData = "playground_data"
	TagComponent      = "component"
	TagCDNLinks       = "cdnLinks"
	TagLink           = "link"
	TagError          = "error"
)

// Parse extracts a ParsedResult from raw. It never fails: malformed or
// missing fields degrade to empty values.
func Parse(raw string) models.ParsedResult {
	result := models.ParsedResult{
		ExternalResources: []string{},
		Envelope:          models.EnvelopeNone,
	}

	chat, hasChat := Extract(raw, TagChatResponse)
	playground, hasPlayground := Extract(raw, TagPlaygroundData)
	component, hasComponent := Extract(raw, TagComponent)

	result.ChatMessage = chat
	switch {
	case hasPlayground:
		result.ComponentSource = playground
	case hasComponent:
		result.ComponentSource = component
	}

	if links, ok := Extract(raw, TagCDNLinks); ok {
		result.ExternalResources = parseLinks(links)
	}
	if errText, ok := Extract(raw, TagError); ok {
		result.Error = errText
	}

	switch {
	case hasChat || hasPlayground:
		result.Envelope = models.EnvelopeResponse
	case hasComponent || result.Error != "" || len(result.ExternalResources) > 0:
		result.Envelope = models.EnvelopeComponent
	}
	return result
}

// Extract returns the text between the first "<tag>" and the first "</tag>"
// that follows it. ok is false when either delimiter is missing.
func Extract(raw, tag string) (string, bool) {
	open := "<" + tag + ">"
	start := strings.Index(raw, open)
	if start < 0 {
		return "", false
	}
	start += len(open)

	end := strings.Index(raw[start:], "</"+tag+">")
	if end < 0 {
		return "", false
	}
	return raw[start : start+end], true
}

// ExtractAll returns the content of every non-overlapping "<tag>...</tag>"
// pair, scanning left to right.
func ExtractAll(raw, tag string) []string {
	open, closing := "<"+tag+">", "</"+tag+">"
	var out []string
	for {
		start := strings.Index(raw, open)
		if start < 0 {
			return out
		}
		rest := raw[start+len(open):]
		end := strings.Index(rest, closing)
		if end < 0 {
			return out
		}
		out = append(out, rest[:end])
		raw = rest[end+len(closing):]
	}
}

// parseLinks collects <link> entries; URLs are whitespace-trimmed and empty
// entries dropped.
func parseLinks(block string) []string {
	links := []string{}
	for _, l := range ExtractAll(block, TagLink) {
		if l = strings.TrimSpace(l); l != "" {
			links = append(links, l)
		}
	}
	return links
}
