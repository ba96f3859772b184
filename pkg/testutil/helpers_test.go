package testutil

import "testing"

func TestAssertFloatEqual(t *testing.T) {
	tests := []struct {
		name      string
		got       float64
		want      float64
		epsilon   float64
		shouldErr bool
	}{
		{"exact match", 1.0, 1.0, 0.001, false},
		{"within epsilon", 1.0, 1.0001, 0.001, false},
		{"outside epsilon", 1.0, 1.1, 0.001, true},
		{"negative values", -5.0, -5.0001, 0.001, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT := &mockTestingT{}
			AssertFloatEqual(mockT, tt.got, tt.want, tt.epsilon)
			if mockT.errored != tt.shouldErr {
				t.Errorf("errored=%v, want %v", mockT.errored, tt.shouldErr)
			}
		})
	}
}

func TestAssertIntEqual(t *testing.T) {
	tests := []struct {
		name      string
		got       int
		want      int
		shouldErr bool
	}{
		{"equal", 42, 42, false},
		{"not equal", 42, 43, true},
		{"negative", -10, -10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT := &mockTestingT{}
			AssertIntEqual(mockT, tt.got, tt.want)
			if mockT.errored != tt.shouldErr {
				t.Errorf("errored=%v, want %v", mockT.errored, tt.shouldErr)
			}
		})
	}
}

func TestAssertStringEqual(t *testing.T) {
	tests := []struct {
		name      string
		got       string
		want      string
		shouldErr bool
	}{
		{"equal", "hello", "hello", false},
		{"not equal", "hello", "world", true},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT := &mockTestingT{}
			AssertStringEqual(mockT, tt.got, tt.want)
			if mockT.errored != tt.shouldErr {
				t.Errorf("errored=%v, want %v", mockT.errored, tt.shouldErr)
			}
		})
	}
}

func TestAssertBytesEqual(t *testing.T) {
	tests := []struct {
		name      string
		got       []byte
		want      []byte
		shouldErr bool
	}{
		{"equal", []byte{1, 2, 3}, []byte{1, 2, 3}, false},
		{"not equal", []byte{1, 2, 3}, []byte{1, 2, 4}, true},
		{"both nil", nil, nil, false},
		{"different length", []byte{1}, []byte{1, 2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT := &mockTestingT{}
			AssertBytesEqual(mockT, tt.got, tt.want)
			if mockT.errored != tt.shouldErr {
				t.Errorf("errored=%v, want %v", mockT.errored, tt.shouldErr)
			}
		})
	}
}

func TestAssertTrue(t *testing.T) {
	tests := []struct {
		name      string
		condition bool
		shouldErr bool
	}{
		{"true", true, false},
		{"false", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT := &mockTestingT{}
			AssertTrue(mockT, tt.condition)
			if mockT.errored != tt.shouldErr {
				t.Errorf("errored=%v, want %v", mockT.errored, tt.shouldErr)
			}
		})
	}
}

func TestAssertFalse(t *testing.T) {
	tests := []struct {
		name      string
		condition bool
		shouldErr bool
	}{
		{"false", false, false},
		{"true", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT := &mockTestingT{}
			AssertFalse(mockT, tt.condition)
			if mockT.errored != tt.shouldErr {
				t.Errorf("errored=%v, want %v", mockT.errored, tt.shouldErr)
			}
		})
	}
}

func TestAssertNil(t *testing.T) {
	tests := []struct {
		name      string
		val       interface{}
		shouldErr bool
	}{
		{"nil", nil, false},
		{"not nil", "string", true},
		{"nil pointer", (*int)(nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT := &mockTestingT{}
			AssertNil(mockT, tt.val)
			if mockT.errored != tt.shouldErr {
				t.Errorf("errored=%v, want %v", mockT.errored, tt.shouldErr)
			}
		})
	}
}

func TestAssertNotNil(t *testing.T) {
	tests := []struct {
		name      string
		val       interface{}
		shouldErr bool
	}{
		{"not nil", "string", false},
		{"nil", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT := &mockTestingT{}
			AssertNotNil(mockT, tt.val)
			if mockT.errored != tt.shouldErr {
				t.Errorf("errored=%v, want %v", mockT.errored, tt.shouldErr)
			}
		})
	}
}

func TestAssertPanic(t *testing.T) {
	mockT := &mockTestingT{}

	AssertPanic(mockT, func() {
		panic("test panic")
	})
	if mockT.errored {
		t.Error("AssertPanic should not error when function panics")
	}

	mockT2 := &mockTestingT{}
	AssertPanic(mockT2, func() {
		// no panic
	})
	if !mockT2.errored {
		t.Error("AssertPanic should error when function doesn't panic")
	}
}

func TestAssertNoPanic(t *testing.T) {
	mockT := &mockTestingT{}

	AssertNoPanic(mockT, func() {
		// no panic
	})
	if mockT.errored {
		t.Error("AssertNoPanic should not error when function doesn't panic")
	}

	mockT2 := &mockTestingT{}
	AssertNoPanic(mockT2, func() {
		panic("test panic")
	})
	if !mockT2.errored {
		t.Error("AssertNoPanic should error when function panics")
	}
}

// mockTestingT is a minimal mock of *testing.T for testing helpers.
type mockTestingT struct {
	errored bool
}

func (m *mockTestingT) Helper() {}

func (m *mockTestingT) Errorf(format string, args ...interface{}) {
	m.errored = true
}

func (m *mockTestingT) Error(args ...interface{}) {
	m.errored = true
}

func (m *mockTestingT) Fatalf(format string, args ...interface{}) {
	m.errored = true
	panic("fatal")
}

func (m *mockTestingT) Fatal(args ...interface{}) {
	m.errored = true
	panic("fatal")
}
