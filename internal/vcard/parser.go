package vcard

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"
)

// ContactRecord is one parsed contact card. A single blob can carry
// several cards; every TEL number is retained in order. Records with zero
// phone numbers are kept — they cannot phone-match but still surface as
// contact-only entries downstream.
type ContactRecord struct {
	DisplayName string
	Service     string // inferred from "Name - Service" naming, may be empty
	Phones      []string
	SourceFile  string
}

var (
	nameServiceRe = regexp.MustCompile(`^([^-–—]+?)\s*[-–—]\s*(.+)$`)
	telValueRe    = regexp.MustCompile(`^(?:item\d+\.)?TEL[^:]*:\s*(\+?[\d\s().-]+)$`)
)

// Parse extracts zero-or-more contact records from a vCard blob. Cards
// with neither a name nor a phone number are counted as skipped, never
// aborting the rest of the file.
func Parse(sourceFile string, data []byte) (records []ContactRecord, skipped int) {
	for _, block := range splitCards(data) {
		rec, ok := parseCard(sourceFile, block)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped
}

func splitCards(data []byte) []string {
	var cards []string
	var current []string
	inCard := false

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case strings.EqualFold(line, "BEGIN:VCARD"):
			inCard = true
			current = nil
		case strings.EqualFold(line, "END:VCARD"):
			if inCard {
				cards = append(cards, strings.Join(current, "\n"))
			}
			inCard = false
		case inCard:
			current = append(current, line)
		}
	}
	return cards
}

func parseCard(sourceFile, block string) (ContactRecord, bool) {
	rec := ContactRecord{SourceFile: sourceFile}

	for _, line := range strings.Split(block, "\n") {
		switch {
		case strings.HasPrefix(line, "FN:"):
			if rec.DisplayName == "" {
				rec.DisplayName = cleanText(strings.TrimPrefix(line, "FN:"))
			}
		case strings.HasPrefix(line, "N:"):
			if rec.DisplayName == "" {
				rec.DisplayName = nameFromN(strings.TrimPrefix(line, "N:"))
			}
		default:
			if m := telValueRe.FindStringSubmatch(line); m != nil {
				if tel := strings.TrimSpace(m[1]); tel != "" {
					rec.Phones = append(rec.Phones, tel)
				}
			}
		}
	}

	if rec.DisplayName == "" {
		rec.DisplayName = nameFromFilename(sourceFile)
	}

	// "דויד - מתקין מזגנים" carries the service in the display name;
	// split it out and keep the bare name for display.
	if name, service, ok := SplitNameService(rec.DisplayName); ok {
		rec.DisplayName = name
		rec.Service = service
	} else if service := serviceFromFilename(sourceFile, rec.DisplayName); service != "" {
		rec.Service = service
	}

	if rec.DisplayName == "" && len(rec.Phones) == 0 {
		return ContactRecord{}, false
	}
	return rec, true
}

// nameFromN joins the non-empty parts of an N: field
// (Family;Given;Additional;Prefix;Suffix).
func nameFromN(raw string) string {
	var parts []string
	for _, p := range strings.Split(raw, ";") {
		if p = cleanText(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func nameFromFilename(sourceFile string) string {
	stem := strings.TrimSuffix(sourceFile, ".vcf")
	stem = strings.TrimSuffix(stem, ".VCF")
	if name, _, ok := SplitNameService(stem); ok {
		return name
	}
	return cleanText(stem)
}

// SplitNameService detects "Name - Service" display names. The service
// part must be at least 3 runes and the name at least 2 to count.
func SplitNameService(s string) (name, service string, ok bool) {
	m := nameServiceRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", "", false
	}
	name = cleanText(m[1])
	service = cleanText(m[2])
	if len([]rune(name)) < 2 || len([]rune(service)) < 3 {
		return "", "", false
	}
	return name, service, true
}

// serviceFromFilename recovers a service label from names like
// "Service - Name.vcf" or "Name.vcf Service" when the display name is
// already known.
func serviceFromFilename(sourceFile, displayName string) string {
	stem := strings.TrimSuffix(strings.TrimSuffix(sourceFile, ".vcf"), ".VCF")
	m := nameServiceRe.FindStringSubmatch(strings.TrimSpace(stem))
	if m == nil {
		return ""
	}
	part1, part2 := cleanText(m[1]), cleanText(m[2])
	name := strings.ToLower(strings.TrimSpace(displayName))

	if name != "" {
		if strings.ToLower(part1) == name && len([]rune(part2)) >= 3 {
			return part2
		}
		if strings.ToLower(part2) == name && len([]rune(part1)) >= 3 {
			return part1
		}
		return ""
	}
	// No name to anchor on: assume the longer part is the service.
	if len(part1) > len(part2) && len([]rune(part1)) >= 3 {
		return part1
	}
	if len([]rune(part2)) >= 3 {
		return part2
	}
	return ""
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
