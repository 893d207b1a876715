package gitpanel

import (
	"sync"
	"testing"
)

func TestRefreshCoordinatorGenerationsAreMonotonicPerClass(t *testing.T) {
	coordinator := NewRefreshCoordinator()

	if gen := coordinator.Begin(RefreshStatus); gen != 1 {
		t.Fatalf("expected first generation 1, got %d", gen)
	}
	if gen := coordinator.Begin(RefreshStatus); gen != 2 {
		t.Fatalf("expected second generation 2, got %d", gen)
	}

	// Classes são independentes entre si.
	if gen := coordinator.Begin(RefreshHistory); gen != 1 {
		t.Fatalf("expected independent class counter, got %d", gen)
	}
	if coordinator.Current(RefreshStatus) != 2 {
		t.Fatalf("expected status current 2, got %d", coordinator.Current(RefreshStatus))
	}
}

func TestRefreshCoordinatorAppliesOnlyLatest(t *testing.T) {
	coordinator := NewRefreshCoordinator()

	gen1 := coordinator.Begin(RefreshStatus)
	gen2 := coordinator.Begin(RefreshStatus)

	applied := ""
	if ok := coordinator.Apply(RefreshStatus, gen2, func() { applied = "newer" }); !ok {
		t.Fatal("expected latest generation to apply")
	}
	if ok := coordinator.Apply(RefreshStatus, gen1, func() { applied = "stale" }); ok {
		t.Fatal("expected stale generation to be rejected")
	}
	if applied != "newer" {
		t.Fatalf("expected newer application to survive, got %q", applied)
	}
}

func TestRefreshCoordinatorStaleOtherClassUnaffected(t *testing.T) {
	coordinator := NewRefreshCoordinator()

	statusGen := coordinator.Begin(RefreshStatus)
	coordinator.Begin(RefreshHistory)
	coordinator.Begin(RefreshHistory)

	// A geração antiga de history não invalida a de status.
	if ok := coordinator.Apply(RefreshStatus, statusGen, nil); !ok {
		t.Fatal("expected status generation untouched by history churn")
	}
}

func TestRefreshCoordinatorApplySerializesMutations(t *testing.T) {
	coordinator := NewRefreshCoordinator()
	generation := coordinator.Begin(RefreshStatus)

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			coordinator.Apply(RefreshStatus, generation, func() {
				counter++
			})
		}()
	}
	wg.Wait()

	if counter != 32 {
		t.Fatalf("expected 32 serialized applications, got %d", counter)
	}
}
