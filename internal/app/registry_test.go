package app

import (
	"fmt"
	"sync"
	"testing"
)

type nullSink struct{}

func (nullSink) Send(any) error { return nil }

func TestRegistryJoinAndProjectOf(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", "u1", "Ada", nullSink{})

	if _, _, ok := r.Join("c1", "p1"); !ok {
		t.Fatal("join failed for registered connection")
	}
	pid, ok := r.ProjectOf("c1")
	if !ok || pid != "p1" {
		t.Fatalf("ProjectOf = %q, %v; want p1, true", pid, ok)
	}
}

func TestRegistryJoinUnknownConnection(t *testing.T) {
	r := NewRegistry()
	if _, _, ok := r.Join("ghost", "p1"); ok {
		t.Fatal("join succeeded for unregistered connection")
	}
}

func TestRegistryAtMostOneRoom(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", "u1", "Ada", nullSink{})
	r.Join("c1", "p1")

	prior, switched, ok := r.Join("c1", "p2")
	if !ok || !switched {
		t.Fatalf("expected room switch, got switched=%v ok=%v", switched, ok)
	}
	if prior.ProjectID != "p1" || !prior.LastOfUser {
		t.Fatalf("prior leave = %+v, want p1 last-of-user", prior)
	}
	if users := r.ListUsers("p1"); len(users) != 0 {
		t.Fatalf("old room still has %d users", len(users))
	}
	if pid, _ := r.ProjectOf("c1"); pid != "p2" {
		t.Fatalf("ProjectOf = %q, want p2", pid)
	}
}

func TestRegistryListUsersDedupes(t *testing.T) {
	r := NewRegistry()
	r.Register("tab1", "u1", "Ada", nullSink{})
	r.Register("tab2", "u1", "Ada", nullSink{})
	r.Register("c3", "u2", "Bob", nullSink{})
	r.Join("tab1", "p1")
	r.Join("tab2", "p1")
	r.Join("c3", "p1")

	users := r.ListUsers("p1")
	if len(users) != 2 {
		t.Fatalf("ListUsers = %d entries, want 2", len(users))
	}
}

func TestRegistryLeaveLastOfUser(t *testing.T) {
	r := NewRegistry()
	r.Register("tab1", "u1", "Ada", nullSink{})
	r.Register("tab2", "u1", "Ada", nullSink{})
	r.Join("tab1", "p1")
	r.Join("tab2", "p1")

	res, inRoom := r.Leave("tab1")
	if !inRoom {
		t.Fatal("leave reported no room")
	}
	if res.LastOfUser {
		t.Fatal("first tab close flagged as last-of-user while second tab lives")
	}

	res, _ = r.Leave("tab2")
	if !res.LastOfUser {
		t.Fatal("second tab close not flagged as last-of-user")
	}
}

func TestRegistryUnregisterLeavesRoom(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", "u1", "Ada", nullSink{})
	r.Join("c1", "p1")

	res, inRoom := r.Unregister("c1")
	if !inRoom || res.ProjectID != "p1" || !res.LastOfUser {
		t.Fatalf("unregister = %+v, %v", res, inRoom)
	}
	if _, ok := r.ProjectOf("c1"); ok {
		t.Fatal("connection still resolvable after unregister")
	}
	if len(r.ListUsers("p1")) != 0 {
		t.Fatal("room not emptied by unregister")
	}
}

func TestRegistrySinksSkip(t *testing.T) {
	r := NewRegistry()
	r.Register("c1", "u1", "Ada", nullSink{})
	r.Register("c2", "u2", "Bob", nullSink{})
	r.Join("c1", "p1")
	r.Join("c2", "p1")

	if got := len(r.Sinks("p1", "")); got != 2 {
		t.Fatalf("Sinks = %d, want 2", got)
	}
	if got := len(r.Sinks("p1", "c1")); got != 1 {
		t.Fatalf("Sinks with skip = %d, want 1", got)
	}
}

func TestRegistryConcurrentJoinLeave(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		conn := ConnID(fmt.Sprintf("c%d", i))
		wg.Add(1)
		go func(c ConnID) {
			defer wg.Done()
			r.Register(c, string(c), "name", nullSink{})
			r.Join(c, "p1")
			r.ListUsers("p1")
			r.Leave(c)
			r.Unregister(c)
		}(conn)
	}
	wg.Wait()
	if got := len(r.ListUsers("p1")); got != 0 {
		t.Fatalf("room not empty after all leaves: %d", got)
	}
}
