package cache

import (
	"fmt"
	"sort"
	"strings"

	"github.com/oasforge/templatecore/pkg/utils"
)

// encodeProperties renders m as a sorted "key=value" properties file,
// UTF-8, LF-terminated, one entry per line.
func encodeProperties(m map[string]string) []byte {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(m[k])
		b.WriteString("\n")
	}
	return []byte(b.String())
}

// decodeProperties parses a "key=value" properties file back into a map.
func decodeProperties(data []byte) (map[string]string, error) {
	out := map[string]string{}
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		if line == "" {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			return nil, fmt.Errorf("line %d: malformed properties entry %q", i+1, line)
		}
		out[line[:idx]] = line[idx+1:]
	}
	return out, nil
}

func writePropertiesAtomic(path string, m map[string]string) error {
	return utils.WriteFileAtomic(path, encodeProperties(m))
}

func readProperties(path string) (map[string]string, error) {
	data, err := utils.SafeReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeProperties(data)
}
