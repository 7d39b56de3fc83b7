// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "strings"

// FirstAuthor shortens an author list such as "Chiang M, Doe J" to the
// first author's last name, adding "et al" when there are co-authors.
// Legacy list brackets and quotes are ignored.
func FirstAuthor(authors string) string {
	cleaned := strings.NewReplacer("[", "", "]", "", "'", "", `"`, "").Replace(authors)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return ""
	}
	parts := strings.Split(cleaned, ", ")
	last := strings.Fields(parts[0])
	if len(last) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return last[0]
	}
	return last[0] + " et al"
}

// FormatFullNames turns "Last, First" entries into "First Last" and joins
// them as "A, B & C".
func FormatFullNames(names []string) string {
	formatted := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if last, first, ok := strings.Cut(n, ", "); ok {
			n = strings.TrimSpace(first) + " " + strings.TrimSpace(last)
		}
		formatted = append(formatted, n)
	}
	switch len(formatted) {
	case 0:
		return ""
	case 1:
		return formatted[0]
	default:
		return strings.Join(formatted[:len(formatted)-1], ", ") + " & " + formatted[len(formatted)-1]
	}
}

// CitationYear returns the leading token of a publication date such as
// "2015 Mar 4".
func CitationYear(date string) string {
	fields := strings.Fields(date)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
