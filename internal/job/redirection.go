package job

import "fmt"

const devNull = "/dev/null"

// Redirection turns an output option into a shell redirection suffix.
//
//   - string: append stdout and stderr to the file
//   - nil: discard both streams
//   - map with "standard" and/or "error": per-stream redirection
//
// Any other value yields "".
func Redirection(v any) string {
	switch t := v.(type) {
	case nil:
		return ">> /dev/null 2>&1"
	case string:
		return ">> " + t + " 2>&1"
	case map[string]any:
		return fromStreams(streamValue(t["standard"]), streamValue(t["error"]))
	case map[string]string:
		return fromStreams(t["standard"], t["error"])
	case Options:
		return fromStreams(streamValue(t["standard"]), streamValue(t["error"]))
	default:
		return ""
	}
}

func streamValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func fromStreams(stdout, stderr string) string {
	switch {
	case stdout == devNull && stderr == devNull:
		return "> /dev/null 2>&1"
	case stdout != "" && stderr == devNull:
		return ">> " + stdout + " 2> /dev/null"
	case stdout != "" && stderr != "":
		return ">> " + stdout + " 2>> " + stderr
	case stderr == devNull:
		return "2> /dev/null"
	case stderr != "":
		return "2>> " + stderr
	case stdout == devNull:
		return "> /dev/null"
	case stdout != "":
		return ">> " + stdout
	default:
		return ""
	}
}
