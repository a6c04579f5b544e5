package observable

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestStoreSubscribeReceivesCurrentValue(t *testing.T) {
	s := New(3)

	var got []int
	s.Subscribe(func(v int) { got = append(got, v) })

	if !reflect.DeepEqual(got, []int{3}) {
		t.Fatalf("expected immediate delivery of 3, got %v", got)
	}
}

func TestStoreSetAndUpdateNotifyInOrder(t *testing.T) {
	s := New("a")

	var first, second []string
	s.Subscribe(func(v string) { first = append(first, v) })
	s.Subscribe(func(v string) { second = append(second, v) })

	s.Set("b")
	s.Update(func(v string) string { return v + "c" })

	want := []string{"a", "b", "bc"}
	if !reflect.DeepEqual(first, want) {
		t.Errorf("first subscriber: expected %v, got %v", want, first)
	}
	if !reflect.DeepEqual(second, want) {
		t.Errorf("second subscriber: expected %v, got %v", want, second)
	}
	if s.Get() != "bc" {
		t.Errorf("expected value %q, got %q", "bc", s.Get())
	}
}

func TestStoreUnsubscribe(t *testing.T) {
	s := New(0)

	calls := 0
	unsubscribe := s.Subscribe(func(int) { calls++ })
	unsubscribe()
	unsubscribe()

	s.Set(1)
	if calls != 1 {
		t.Fatalf("expected only the initial call, got %d calls", calls)
	}
}

func TestDeriveRecomputesOnPublish(t *testing.T) {
	src := New(2)
	double := Derive[int, int](src, func(v int) int { return v * 2 })

	if double.Get() != 4 {
		t.Fatalf("expected initial derived value 4, got %d", double.Get())
	}

	var seen []int
	double.Subscribe(func(v int) { seen = append(seen, v) })

	src.Set(5)
	if double.Get() != 10 {
		t.Fatalf("expected derived value 10, got %d", double.Get())
	}
	if !reflect.DeepEqual(seen, []int{4, 10}) {
		t.Errorf("expected derived notifications [4 10], got %v", seen)
	}

	double.Close()
	src.Set(7)
	if double.Get() != 10 {
		t.Errorf("expected closed derived value to stay 10, got %d", double.Get())
	}
}

func TestConcurrentSetsKeepDerivedInStep(t *testing.T) {
	src := New(0)

	entered := make(chan struct{})
	release := make(chan struct{})
	// Registered before Derive so it runs ahead of the derived callback.
	src.Subscribe(func(v int) {
		if v == 1 {
			close(entered)
			<-release
		}
	})
	same := Derive[int, int](src, func(v int) int { return v })

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		src.Set(1)
	}()
	<-entered

	secondDone := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		src.Set(2)
		close(secondDone)
	}()

	select {
	case <-secondDone:
		t.Fatal("second Set finished while the first was still publishing")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	wg.Wait()

	if src.Get() != 2 || same.Get() != 2 {
		t.Fatalf("expected source and derived to be 2, got source=%d derived=%d", src.Get(), same.Get())
	}
}
