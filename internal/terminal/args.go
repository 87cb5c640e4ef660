package terminal

import "strings"

const argDelims = " \t\r\n"

// splitArgs splits a command line at blanks. A token that starts with a
// single or double quote runs to the matching quote and may contain
// blanks; an unmatched quote takes the rest of the line.
func splitArgs(line string) []string {
	var args []string
	for {
		line = strings.TrimLeft(line, argDelims)
		if line == "" {
			return args
		}
		if q := line[0]; q == '\'' || q == '"' {
			end := strings.IndexByte(line[1:], q)
			if end < 0 {
				return append(args, line)
			}
			args = append(args, line[1:1+end])
			line = line[end+2:]
			continue
		}
		end := strings.IndexAny(line, argDelims)
		if end < 0 {
			return append(args, line)
		}
		args = append(args, line[:end])
		line = line[end:]
	}
}
