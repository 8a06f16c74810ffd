package sentiment

import (
	"bufio"
	"embed"
	"fmt"
	"strconv"
	"strings"
)

//go:embed data/*.tsv
var dataFS embed.FS

// readTable parses a tab-separated file with a fixed number of numeric
// columns after the word. Lines starting with '#' are comments.
func readTable(name string, columns int) (map[string][]float64, error) {
	f, err := dataFS.Open("data/" + name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table := make(map[string][]float64)
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) != columns+1 {
			return nil, fmt.Errorf("sentiment: %s:%d: want %d columns, got %d", name, line, columns+1, len(fields))
		}
		vals := make([]float64, columns)
		for i := range vals {
			v, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("sentiment: %s:%d: %w", name, line, err)
			}
			vals[i] = v
		}
		table[strings.ToLower(fields[0])] = vals
	}
	return table, sc.Err()
}

// mustTable is readTable for embedded data that ships with the binary.
func mustTable(name string, columns int) map[string][]float64 {
	t, err := readTable(name, columns)
	if err != nil {
		panic(err)
	}
	return t
}
