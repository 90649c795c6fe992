package logx

import "testing"

func TestNopDoesNotPanic(t *testing.T) {
	log := Nop()
	log.Infof("test %s", "message")
	log.Warnf("test %d", 1)
	log.Errorf("test %v", errTest)
	log.Debugf("test")
}

var errTest = testErr{}

type testErr struct{}

func (testErr) Error() string { return "test error" }
