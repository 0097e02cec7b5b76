package history

import (
	"testing"

	"github.com/lodestone-labs/macroexec/internal/lifecycle"
)

func TestOpen_CreatesSchema(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := s.Get(lifecycle.Pid(1)); err != nil {
		t.Fatalf("querying an empty store should not error: %v", err)
	}
}

func TestRecordExit_AndGet(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	instanceID := "instance-1"
	status := lifecycle.ErrorStatus("guest threw")
	if err := s.RecordExit(lifecycle.Pid(7), &instanceID, status); err != nil {
		t.Fatal(err)
	}

	run, err := s.Get(lifecycle.Pid(7))
	if err != nil {
		t.Fatal(err)
	}
	if run == nil {
		t.Fatal("expected a recorded run")
	}
	if run.InstanceID == nil || *run.InstanceID != instanceID {
		t.Errorf("InstanceID = %v, want %q", run.InstanceID, instanceID)
	}
	if run.Status.Kind != lifecycle.ExitError || run.Status.Message != "guest threw" {
		t.Errorf("Status = %+v, want Error{guest threw}", run.Status)
	}
}

func TestRecordExit_NilInstanceID(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.RecordExit(lifecycle.Pid(9), nil, lifecycle.SuccessStatus()); err != nil {
		t.Fatal(err)
	}

	run, err := s.Get(lifecycle.Pid(9))
	if err != nil {
		t.Fatal(err)
	}
	if run == nil {
		t.Fatal("expected a recorded run")
	}
	if run.InstanceID != nil {
		t.Errorf("InstanceID = %v, want nil", run.InstanceID)
	}
}

func TestRecordExit_FirstWriteWins(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.RecordExit(lifecycle.Pid(3), nil, lifecycle.SuccessStatus()); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordExit(lifecycle.Pid(3), nil, lifecycle.ErrorStatus("should be ignored")); err != nil {
		t.Fatal(err)
	}

	run, err := s.Get(lifecycle.Pid(3))
	if err != nil {
		t.Fatal(err)
	}
	if run.Status.Kind != lifecycle.ExitSuccess {
		t.Errorf("Status.Kind = %v, want ExitSuccess (first write should win)", run.Status.Kind)
	}
}

func TestGet_UnrecordedPid(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	run, err := s.Get(lifecycle.Pid(404))
	if err != nil {
		t.Fatal(err)
	}
	if run != nil {
		t.Errorf("Get on an unrecorded pid = %+v, want nil", run)
	}
}

func TestNilStore_IsANoop(t *testing.T) {
	var s *Store

	if err := s.RecordExit(lifecycle.Pid(1), nil, lifecycle.SuccessStatus()); err != nil {
		t.Errorf("RecordExit on a nil *Store should be a no-op, got %v", err)
	}
	run, err := s.Get(lifecycle.Pid(1))
	if err != nil || run != nil {
		t.Errorf("Get on a nil *Store = %v, %v; want nil, nil", run, err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close on a nil *Store should be a no-op, got %v", err)
	}
}
