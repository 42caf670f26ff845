package alert

import (
	"fmt"
	"os/exec"
	"strings"
)

// CommandSender pipes the payload body to an external command (typically a
// local mail client), with the subject appended to the argument list. The
// command's own retry and delivery semantics are its business.
type CommandSender struct {
	Name string
	Args []string
}

// Send runs the command with the payload on stdin.
func (s CommandSender) Send(subject, body string) error {
	if s.Name == "" {
		return fmt.Errorf("alert: empty notify command")
	}
	args := append(append([]string(nil), s.Args...), subject)
	cmd := exec.Command(s.Name, args...)
	cmd.Stdin = strings.NewReader(body)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("alert: notify command %s: %w (%s)",
			s.Name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
