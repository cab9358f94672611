package reporting

import (
	"fmt"
	"io"
	"os"
)

// OpenOutput resolves an output destination name: "stdout" and "stderr"
// map to the process streams (closing them is a no-op), anything else is
// created as a file.
func OpenOutput(name string) (io.WriteCloser, error) {
	switch name {
	case "", "stdout":
		return nopCloser{os.Stdout}, nil
	case "stderr":
		return nopCloser{os.Stderr}, nil
	default:
		f, err := os.Create(name)
		if err != nil {
			return nil, fmt.Errorf("opening output %q: %w", name, err)
		}
		return f, nil
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
