package storage

import "os"

// WithoutHardLinks makes every link attempt fail with err until the returned
// function is called.
func WithoutHardLinks(err error) (restore func()) {
	linkFile = func(_, _ string) error {
		return &os.LinkError{Op: "link", Err: err}
	}
	return func() { linkFile = os.Link }
}
