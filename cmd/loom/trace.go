package main

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sort"

	"github.com/loomrun/loom/internal/analyzer"
	"github.com/loomrun/loom/internal/executor"
	"github.com/loomrun/loom/internal/script"
	"github.com/loomrun/loom/internal/trace"
)

// multiObserver fans a single executor.Observer callback out to several,
// in registration order. internal/hooks.Engine and internal/trace.Recorder
// both implement executor.Observer but serve different purposes (plugin
// dispatch vs. trace recording), so `loom run --trace` needs both attached
// at once.
type multiObserver struct {
	observers []executor.Observer
}

func (m multiObserver) BeforeNode(ref script.Reference) {
	for _, o := range m.observers {
		o.BeforeNode(ref)
	}
}

func (m multiObserver) AfterNode(ref script.Reference, result *executor.Result) {
	for _, o := range m.observers {
		o.AfterNode(ref, result)
	}
}

func graphHash(graph *analyzer.Graph) string {
	keys := make([]string, 0, len(graph.Nodes))
	for k := range graph.Nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeTrace(recorder *trace.Recorder, graph *analyzer.Graph, path string) error {
	doc := recorder.Trace(graphHash(graph))
	data, err := doc.CanonicalJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

type resumeReport struct {
	satisfied int
	total     int
}

func buildResumeReport(exec *executor.Executor, graph *analyzer.Graph) resumeReport {
	var r resumeReport
	for _, cfg := range graph.Nodes {
		r.total++
		if _, ok := exec.ProbeSatisfied(cfg.Ref); ok {
			r.satisfied++
		}
	}
	return r
}
