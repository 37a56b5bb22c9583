package parse

import (
	"bufio"
	"bytes"
	"os"
)

// eachLine calls fn for every non-blank line of the file at path. Lines are
// read without a length cap so one oversized record cannot end the file
// early. A missing file is reported as os.ErrNotExist; a read error part way
// through stops iteration but keeps what was already delivered.
func eachLine(path string, fn func(line []byte)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)
	for {
		line, err := r.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			fn(trimmed)
		}
		if err != nil {
			// io.EOF, or a read error we degrade on
			return nil
		}
	}
}
