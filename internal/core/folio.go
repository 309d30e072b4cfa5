package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FolioFamily is a human-readable sequence: PREFIX-NNNN with a fixed zero-padded width.
type FolioFamily struct {
	Name   string
	Prefix string
	Width  int
}

// Folio families assigned on creation.
var (
	FolioIncident = FolioFamily{Name: "incident", Prefix: "I", Width: 4}
	FolioDelivery = FolioFamily{Name: "delivery", Prefix: "F", Width: 4}
	FolioAudit    = FolioFamily{Name: "audit", Prefix: "AUD", Width: 4}
	FolioPermit   = FolioFamily{Name: "permit", Prefix: "PT", Width: 4}
	FolioWasteLog = FolioFamily{Name: "waste_log", Prefix: "RD", Width: 5}
)

var folioFamilies = []FolioFamily{FolioIncident, FolioDelivery, FolioAudit, FolioPermit, FolioWasteLog}

// FolioFamilies lists the known families ordered by name.
func FolioFamilies() []FolioFamily {
	out := append([]FolioFamily(nil), folioFamilies...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LookupFolioFamily resolves a family by name or prefix (case-insensitive).
func LookupFolioFamily(name string) (FolioFamily, bool) {
	for _, f := range folioFamilies {
		if strings.EqualFold(f.Name, name) || strings.EqualFold(f.Prefix, name) {
			return f, true
		}
	}
	return FolioFamily{}, false
}

// Next returns the folio following every folio in existing.
func (f FolioFamily) Next(existing []string) string {
	return NextFolio(existing, f.Prefix, f.Width)
}

// NextFolio returns prefix-(max+1) zero-padded to width, where max is the
// largest numeric suffix after the last '-' among existing. Folios without a
// parsable suffix count as zero.
func NextFolio(existing []string, prefix string, width int) string {
	highest := 0
	for _, folio := range existing {
		if n := folioNumber(folio); n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s-%0*d", prefix, width, highest+1)
}

func folioNumber(folio string) int {
	idx := strings.LastIndexByte(folio, '-')
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(folio[idx+1:]))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
