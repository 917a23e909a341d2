package playbook

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

const validPlaybooks = `
playbooks:
  - id: block-high-confidence
    name: Block High Confidence IOCs
    enabled: true
    match_event_type: intel_match
    conditions:
      - field: fields.confidence
        operator: ">="
        value: 0.9
    actions:
      - action_type: block_domain
        parameters:
          domain: "{{fields.ioc_value}}"
      - action_type: send_notification
        parameters:
          subject: "Blocked {{fields.ioc_value}}"
          severity: high
    dry_run: true
    priority: 80
  - id: tag-anomalous-device
    name: Tag Anomalous Devices
    enabled: true
    match_event_type: anomaly
    actions:
      - action_type: tag_device
        parameters:
          device_id: "{{fields.device_id}}"
          tag: anomalous
    priority: 50
  - id: log-everything
    name: Log Everything
    enabled: false
    match_event_type: "*"
    actions:
      - action_type: log_event
    priority: 50
`

func writeTempPlaybooks(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "playbooks.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp playbooks: %v", err)
	}
	return path
}

func TestStore_Load(t *testing.T) {
	store := NewStore(writeTempPlaybooks(t, validPlaybooks))

	count, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if count != 3 {
		t.Errorf("Load() count = %d, want 3", count)
	}
	if store.Count() != 3 {
		t.Errorf("Count() = %d, want 3", store.Count())
	}

	pb, ok := store.Get("block-high-confidence")
	if !ok {
		t.Fatal("Get(block-high-confidence) not found")
	}
	if pb.Priority != 80 || !pb.DryRun {
		t.Errorf("playbook fields wrong: priority=%d dry_run=%v", pb.Priority, pb.DryRun)
	}
	if pb.Conditions[0].Operator != OpGE {
		t.Errorf("operator = %q, want >=", pb.Conditions[0].Operator)
	}
}

func TestStore_StableSort(t *testing.T) {
	store := NewStore("unused")

	count, err := store.LoadBytes([]byte(validPlaybooks))
	if err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}

	// Priority 80 first, then the two priority-50 entries in file order.
	list := store.List(false)
	wantOrder := []string{"block-high-confidence", "tag-anomalous-device", "log-everything"}
	for i, want := range wantOrder {
		if list[i].ID != want {
			t.Errorf("list[%d] = %s, want %s", i, list[i].ID, want)
		}
	}
}

func TestStore_ListEnabledOnly(t *testing.T) {
	store := NewStore("unused")
	if _, err := store.LoadBytes([]byte(validPlaybooks)); err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}

	enabled := store.List(true)
	if len(enabled) != 2 {
		t.Fatalf("enabled count = %d, want 2", len(enabled))
	}
	for _, pb := range enabled {
		if !pb.Enabled {
			t.Errorf("disabled playbook %s in enabled-only list", pb.ID)
		}
	}
}

func TestStore_DuplicateID(t *testing.T) {
	doc := `
playbooks:
  - id: dup
    name: First
    enabled: true
    match_event_type: "*"
    actions:
      - action_type: log_event
  - id: dup
    name: Second
    enabled: true
    match_event_type: "*"
    actions:
      - action_type: log_event
`
	store := NewStore("unused")
	if _, err := store.LoadBytes([]byte(doc)); err == nil {
		t.Error("LoadBytes() should fail on duplicate playbook id")
	}
}

func TestStore_InvalidOperator(t *testing.T) {
	doc := `
playbooks:
  - id: bad-op
    name: Bad Operator
    enabled: true
    match_event_type: "*"
    conditions:
      - field: fields.x
        operator: "~="
        value: 1
    actions:
      - action_type: log_event
`
	store := NewStore("unused")
	if _, err := store.LoadBytes([]byte(doc)); err == nil {
		t.Error("LoadBytes() should fail on unknown operator token")
	}
}

func TestStore_InvalidActionType(t *testing.T) {
	doc := `
playbooks:
  - id: bad-action
    name: Bad Action
    enabled: true
    match_event_type: "*"
    actions:
      - action_type: launch_missiles
`
	store := NewStore("unused")
	if _, err := store.LoadBytes([]byte(doc)); err == nil {
		t.Error("LoadBytes() should fail on unknown action type")
	}
}

func TestStore_FailedReloadKeepsPreviousSet(t *testing.T) {
	path := writeTempPlaybooks(t, validPlaybooks)
	store := NewStore(path)

	if _, err := store.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("playbooks: [not valid"), 0o644); err != nil {
		t.Fatalf("overwrite playbooks: %v", err)
	}

	if _, err := store.Reload(); err == nil {
		t.Fatal("Reload() should fail on malformed document")
	}

	// The previous generation must still be serving reads.
	if store.Count() != 3 {
		t.Errorf("Count() after failed reload = %d, want 3", store.Count())
	}
}

func TestStore_UppercaseActionTypes(t *testing.T) {
	doc := `
playbooks:
  - id: legacy-tokens
    name: Legacy Token Casing
    enabled: true
    match_event_type: intel_match
    actions:
      - action_type: BLOCK_DOMAIN
        parameters:
          domain: "{{fields.ioc_value}}"
      - action_type: LOG_EVENT
`
	store := NewStore("unused")
	if _, err := store.LoadBytes([]byte(doc)); err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}

	pb, ok := store.Get("legacy-tokens")
	if !ok {
		t.Fatal("Get(legacy-tokens) not found")
	}
	if pb.Actions[0].Type != ActionBlockDomain {
		t.Errorf("action type = %q, want %q", pb.Actions[0].Type, ActionBlockDomain)
	}
	if pb.Actions[1].Type != ActionLogEvent {
		t.Errorf("action type = %q, want %q", pb.Actions[1].Type, ActionLogEvent)
	}
}

func TestStore_ConcurrentReadsDuringReload(t *testing.T) {
	store := NewStore("unused")
	if _, err := store.LoadBytes([]byte(validPlaybooks)); err != nil {
		t.Fatalf("LoadBytes() error = %v", err)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup

	// Readers must always observe a complete generation, old or new,
	// while reloads swap the set underneath them.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				list := store.List(false)
				if len(list) != 3 {
					t.Errorf("List() saw partial set of %d", len(list))
					return
				}
				for _, pb := range list {
					if pb == nil || pb.ID == "" {
						t.Error("List() saw incomplete playbook")
						return
					}
				}
				if _, ok := store.Get("block-high-confidence"); !ok {
					t.Error("Get() missed a playbook present in every generation")
					return
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		if _, err := store.LoadBytes([]byte(validPlaybooks)); err != nil {
			t.Fatalf("LoadBytes() error = %v", err)
		}
	}
	close(done)
	wg.Wait()
}

func TestStore_MissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := store.Load(); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}
