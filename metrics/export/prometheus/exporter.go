package prometheus

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/MrEthical07/jwtauth"
	"github.com/MrEthical07/jwtauth/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

// Source is satisfied by *jwtauth.Engine.
type Source interface {
	MetricsSnapshot() jwtauth.MetricsSnapshot
	AuditDropped() uint64
}

// Exporter renders an engine snapshot on every scrape. It keeps no state of
// its own, so several exporters may share one engine.
type Exporter struct {
	source Source
}

func New(source Source) *Exporter {
	return &Exporter{source: source}
}

// Handler serves Render. An engine built without metrics answers with an
// empty body.
func (p *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render writes the token path counters in the order obtain, refresh,
// verify, blacklist, then the latency histograms and the audit drop counter.
// It returns "" when the engine has recorded nothing.
func (p *Exporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}
	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var buf bytes.Buffer
	buf.Grow(4096)
	for _, def := range internaldefs.CounterDefs {
		counter(&buf, def.Name, def.Help, snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		latency(&buf, def.Name, def.Help, snap.Histograms[def.ID])
	}
	counter(&buf, internaldefs.AuditDroppedName, "Audit events lost because the dispatcher queue was full.", dropped)
	return buf.String()
}

func header(buf *bytes.Buffer, name, help, kind string) {
	fmt.Fprintf(buf, "# HELP %s %s\n# TYPE %s %s\n", name, escapeHelp(help), name, kind)
}

func counter(buf *bytes.Buffer, name, help string, v uint64) {
	header(buf, name, help, "counter")
	fmt.Fprintf(buf, "%s %d\n", name, v)
}

// latency writes one histogram from the engine's per-bucket counts.
func latency(buf *bytes.Buffer, name, help string, raw []uint64) {
	cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
	header(buf, name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		fmt.Fprintf(buf, "%s_bucket{le=%q} %d\n", name, le, cumulative[i])
	}
	// the engine keeps bucket counts only, so the sum is always 0
	fmt.Fprintf(buf, "%s_sum 0\n%s_count %d\n", name, name, cumulative[len(cumulative)-1])
}

func escapeHelp(help string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
}
