package open

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// OpenSession opens a session's source log in $EDITOR (less when unset),
// positioned at the first line containing query when there is one.
func OpenSession(filePath, query string) error {
	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("file not found: %s", filePath)
	}

	lineNum := 1
	if terms := strings.Fields(query); len(terms) > 0 {
		if n, err := LineOf(filePath, terms[0]); err == nil && n > 0 {
			lineNum = n
		}
	}

	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "less"
	}

	cmd := editorCommand(editor, filePath, lineNum)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// LineOf returns the 1-based number of the first line containing needle,
// case-insensitively, or 0 when none does.
func LineOf(filePath, needle string) (int, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	needle = strings.ToLower(needle)
	r := bufio.NewReader(f)
	for n := 1; ; n++ {
		line, err := r.ReadString('\n')
		if needle != "" && strings.Contains(strings.ToLower(line), needle) {
			return n, nil
		}
		if err != nil {
			return 0, nil
		}
	}
}

func editorCommand(editor, filePath string, lineNum int) *exec.Cmd {
	switch {
	case strings.Contains(editor, "vim") || strings.Contains(editor, "nvim"):
		return exec.Command(editor, fmt.Sprintf("+%d", lineNum), filePath)
	case strings.Contains(editor, "code"):
		return exec.Command(editor, "--goto", filePath+":"+strconv.Itoa(lineNum))
	case strings.Contains(editor, "less"):
		return exec.Command(editor, "+"+strconv.Itoa(lineNum), filePath)
	default:
		return exec.Command(editor, filePath)
	}
}
