package lifecycle

import "testing"

func TestSuccessStatus_Kind(t *testing.T) {
	s := SuccessStatus()
	if s.Kind != ExitSuccess {
		t.Errorf("Kind = %v, want ExitSuccess", s.Kind)
	}
	if s.Time == 0 {
		t.Error("expected a non-zero timestamp")
	}
}

func TestKilledStatus_Kind(t *testing.T) {
	s := KilledStatus()
	if s.Kind != ExitKilled {
		t.Errorf("Kind = %v, want ExitKilled", s.Kind)
	}
}

func TestErrorStatus_CarriesMessage(t *testing.T) {
	s := ErrorStatus("boom")
	if s.Kind != ExitError {
		t.Errorf("Kind = %v, want ExitError", s.Kind)
	}
	if s.Message != "boom" {
		t.Errorf("Message = %q, want boom", s.Message)
	}
}

func TestExitStatus_String(t *testing.T) {
	tests := []struct {
		name   string
		status ExitStatus
		want   string
	}{
		{"success", ExitStatus{Kind: ExitSuccess, Time: 5}, "Success{5}"},
		{"killed", ExitStatus{Kind: ExitKilled, Time: 7}, "Killed{7}"},
		{"error", ExitStatus{Kind: ExitError, Time: 9, Message: "bad"}, `Error{"bad", 9}`},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("%s: String() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestPid_String(t *testing.T) {
	if got := Pid(7).String(); got != "MacroPID(7)" {
		t.Errorf("Pid(7).String() = %q, want MacroPID(7)", got)
	}
}
