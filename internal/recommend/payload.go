package recommend

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/mineoil-data/fleet.report/internal/oil"
)

// severityLabel renders a severity tier as the Spanish limit wording the
// prompt and the field engineers use.
func severityLabel(s oil.Severity) string {
	switch s {
	case oil.SeverityCritical:
		return "limite superior critico"
	case oil.SeverityAlert:
		return "limite superior condenatorio"
	case oil.SeverityMarginal:
		return "limite superior marginal"
	default:
		return "sin limite transgredido"
	}
}

// CacheKey derives a deterministic key from the tenant, component and the
// sorted breached-measurement set, so identical breach patterns reuse a
// prior recommendation instead of re-invoking the service. Values are
// deliberately excluded: two samples breaching the same limits at slightly
// different readings share one recommendation.
func CacheKey(tenant, component string, breached []oil.EssayResult) string {
	parts := make([]string, 0, len(breached))
	for _, b := range breached {
		parts = append(parts, b.Essay+"|"+string(b.Severity))
	}
	sort.Strings(parts)

	h := sha1.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s", tenant, component, strings.Join(parts, "\x00"))
	return "recommend:" + hex.EncodeToString(h.Sum(nil))
}

// BuildPrompt formats the analysis request the way the lab engineers read
// it: component and machine headers followed by a fixed-width table of
// breached measurements.
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Analiza una muestra para el siguiente equipo:\n")
	fmt.Fprintf(&b, "Componente: %s\n", req.Component)
	fmt.Fprintf(&b, "Máquina: %s - %s\n\n", req.MachineName, strings.ToUpper(req.MachineModel))
	b.WriteString("Los valores de la muestra son:\n")
	fmt.Fprintf(&b, "%-28s %10s %-30s %12s\n", "elemento", "valor", "limite transgredido", "valor limite")
	for _, e := range req.Breached {
		fmt.Fprintf(&b, "%-28s %10.1f %-30s %12.1f\n", e.Essay, e.Value, severityLabel(e.Severity), e.Limit)
	}
	return b.String()
}
