package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/kailas-cloud/commentlens/internal/domain"
	"github.com/kailas-cloud/commentlens/internal/domain/group"
	"github.com/kailas-cloud/commentlens/internal/domain/item"
	"github.com/kailas-cloud/commentlens/internal/domain/recovery"
	"github.com/kailas-cloud/commentlens/internal/domain/search/result"
	"github.com/kailas-cloud/commentlens/internal/repository/embcache"
	"github.com/kailas-cloud/commentlens/internal/usecase/pipeline"
)

const previewRunes = 80

var (
	boldCyan  = color.New(color.FgCyan, color.Bold).SprintFunc()
	boldGreen = color.New(color.FgGreen, color.Bold).SprintFunc()
	yellow    = color.New(color.FgYellow).SprintFunc()
	boldRed   = color.New(color.FgRed, color.Bold).SprintFunc()
	faint     = color.New(color.Faint).SprintFunc()
)

var methodOrder = []item.Method{
	item.MethodPatternExact,
	item.MethodPatternSubstring,
	item.MethodPatternURL,
	item.MethodSemantic,
	item.MethodUnassigned,
}

func printRecovery(w io.Writer, st recovery.Stats) {
	fmt.Fprintln(w, boldCyan("Orphan recovery"))
	if st.TotalOrphaned == 0 {
		fmt.Fprintln(w, "  no orphaned items")
		return
	}
	fmt.Fprintf(w, "  orphaned:   %d\n", st.TotalOrphaned)
	fmt.Fprintf(w, "  pattern:    %s\n", boldGreen(st.RecoveredByPattern))
	fmt.Fprintf(w, "  similarity: %s\n", boldGreen(st.RecoveredBySimilarity))
	fmt.Fprintf(w, "  unassigned: %s\n", yellow(st.Unassigned))
	fmt.Fprintf(w, "  recovered:  %.1f%%\n", st.RecoveryRate()*100)
	for _, m := range methodOrder {
		if n := st.ByMethod[m]; n > 0 {
			fmt.Fprintf(w, "    %-18s %d\n", m, n)
		}
	}
	if st.SimilarityDegraded {
		fmt.Fprintln(w, yellow("  similarity pass skipped: no vectors available"))
	}
	if !st.Balanced() {
		fmt.Fprintln(w, boldRed("  counts do not add up to the orphan total"))
	}
}

func printUsage(w io.Writer, u domain.UsageSnapshot) {
	fmt.Fprintf(w, "%s encoder %d calls / %d tokens, completer %d calls / %d tokens\n",
		boldCyan("Usage"), u.EncoderCalls, u.EncoderTokens, u.CompleterCalls, u.CompleterTokens)
}

func printRun(w io.Writer, rep *pipeline.Report) {
	fmt.Fprintf(w, "%s %s %s\n", boldGreen("Run"), rep.RunID, faint(rep.Elapsed.Round(time.Millisecond)))
	if rep.Reassigned {
		printRecovery(w, rep.Stats)
	}
	for _, g := range rep.Groups {
		printGroupReport(w, g)
	}
	printUsage(w, rep.Usage)
}

func printGroupReport(w io.Writer, gr pipeline.GroupReport) {
	g := gr.Group
	fmt.Fprintf(w, "%s %s", boldCyan("Group"), g.ID())
	if g.Title() != "" {
		fmt.Fprintf(w, " %s", faint(g.Title()))
	}
	fmt.Fprintf(w, " (%d items", g.Len())
	if n := g.ReassignedCount(); n > 0 {
		fmt.Fprintf(w, ", %d reassigned", n)
	}
	fmt.Fprintln(w, ")")

	if gr.Skipped {
		fmt.Fprintln(w, yellow("  skipped"))
		return
	}
	e := gr.Embedding
	fmt.Fprintf(w, "  embedded: %d cached, %d encoded, %d failed, %d skipped\n",
		e.Cached, e.Encoded, e.Failed, e.Skipped)
	for _, res := range gr.Results {
		printResultLine(w, res)
	}
	if gr.Failed > 0 {
		fmt.Fprintf(w, "  %s\n", boldRed(fmt.Sprintf("%d searches failed", gr.Failed)))
	}
}

func printResultLine(w io.Writer, res *result.Result) {
	req := res.Request()
	line := fmt.Sprintf("  %-32s %3d results  %s", req.Name(), res.Len(), faint(res.Elapsed().Round(time.Millisecond)))
	if n := res.DegradedBatches(); n > 0 {
		line += " " + yellow(fmt.Sprintf("%d degraded batches", n))
	}
	fmt.Fprintln(w, line)
}

// printResult renders one search result in full.
func printResult(w io.Writer, g *group.Group, res *result.Result) {
	req := res.Request()
	fmt.Fprintf(w, "%s %q in %s\n", boldCyan("Search"), req.Query(), g.ID())
	fmt.Fprintf(w, "  %d of %d items, %d external calls, %s\n",
		res.Len(), g.Len(), res.ExternalCalls(), res.Elapsed().Round(time.Millisecond))

	scores := res.Scores()
	for i, it := range res.Items() {
		fmt.Fprintf(w, "  %2d. %s %s %s\n", i+1, boldGreen(fmt.Sprintf("%.3f", scores[i])),
			faint(it.ID()), preview(it.Content()))
	}
	printInsights(w, res.Insights())
}

func printInsights(w io.Writer, in result.Insights) {
	var parts []string
	if in.AvgSentiment != nil {
		parts = append(parts, fmt.Sprintf("sentiment %.2f", *in.AvgSentiment))
	}
	if len(in.Topics) > 0 {
		parts = append(parts, "topics "+strings.Join(in.Topics, ", "))
	}
	if in.QuestionCategory != "" {
		parts = append(parts, "questions "+in.QuestionCategory)
	}
	if len(parts) > 0 {
		fmt.Fprintf(w, "  %s %s\n", boldCyan("Insights"), strings.Join(parts, "; "))
	}
	for _, s := range in.Suggestions {
		fmt.Fprintf(w, "    - %s\n", preview(s))
	}
}

func printReassigned(w io.Writer, groups []*group.Group) {
	sorted := append([]*group.Group(nil), groups...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ReassignedCount() > sorted[j].ReassignedCount()
	})
	for _, g := range sorted {
		n := g.ReassignedCount()
		if n == 0 {
			continue
		}
		label := g.ID()
		if g.Synthetic() {
			label = yellow(label)
		}
		fmt.Fprintf(w, "  %-24s +%d\n", label, n)
	}
}

func printCache(w io.Writer, driver string, st embcache.Stats) {
	fmt.Fprintf(w, "%s %s\n", boldCyan("Embedding cache"), driver)
	fmt.Fprintf(w, "  entries: %d\n", st.Entries)
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes-3]) + "..."
}
