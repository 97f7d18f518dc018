package soundcheck

import "fmt"

// invariantError marks a breach of an internal programming contract, such as
// a buffer-accounting mismatch or misrouted callback dispatch. It is raised
// with panic and must never be converted into a run failure: it signals a
// defect in the harness, not bad input or a misbehaving driver.
type invariantError struct {
	msg string
}

func (e invariantError) Error() string {
	return e.msg
}

// bugf builds an invariantError for panicking.
func bugf(format string, args ...interface{}) invariantError {
	return invariantError{msg: fmt.Sprintf(format, args...)}
}
