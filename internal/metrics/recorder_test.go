package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_Filter(t *testing.T) {
	r := New("test", prometheus.NewRegistry())
	r.Filter("public", "public", 12, 3, 2)

	if got := testutil.ToFloat64(r.documents.WithLabelValues("public", "public", "included")); got != 12 {
		t.Errorf("included = %v, want 12", got)
	}
	if got := testutil.ToFloat64(r.documents.WithLabelValues("public", "public", "excluded")); got != 3 {
		t.Errorf("excluded = %v, want 3", got)
	}
	if got := testutil.ToFloat64(r.synthesized.WithLabelValues("public")); got != 2 {
		t.Errorf("synthesized = %v, want 2", got)
	}
}

func TestRecorder_FindingsAccumulate(t *testing.T) {
	r := New("test", nil)
	r.Findings("public", "leak", 2)
	r.Findings("public", "leak", 1)
	r.Findings("public", "orphan", 0)

	if got := testutil.ToFloat64(r.findings.WithLabelValues("public", "leak")); got != 3 {
		t.Errorf("leak findings = %v, want 3", got)
	}
	if n := testutil.CollectAndCount(r.findings); n != 1 {
		t.Errorf("finding series = %d, want 1", n)
	}
}

func TestRecorder_Build(t *testing.T) {
	r := New("test", nil)
	now := time.Unix(1700000000, 0)
	r.Build("public", OutcomeSuccess, 2*time.Second, now)
	r.Build("public", OutcomeLeaked, time.Second, now.Add(time.Minute))

	if got := testutil.ToFloat64(r.builds.WithLabelValues("public", OutcomeSuccess)); got != 1 {
		t.Errorf("success builds = %v", got)
	}
	if got := testutil.ToFloat64(r.lastSuccess.WithLabelValues("public")); got != 1700000000 {
		t.Errorf("last success = %v, want only the successful build", got)
	}
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := New("test", nil)
	r.BrokenLinks("public", 4)

	path := filepath.Join(t.TempDir(), "gardensite.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `test_broken_links{target="public"} 4`) {
		t.Errorf("textfile missing broken links sample:\n%s", data)
	}
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.Filter("x", "public", 1, 1, 1)
	r.Findings("x", "leak", 1)
	r.Build("x", OutcomeFailed, time.Second, time.Now())
	if err := r.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")); err != nil {
		t.Fatalf("nil WriteTextfile: %v", err)
	}
	if r.Registry() != nil {
		t.Error("nil recorder has a registry")
	}
}
