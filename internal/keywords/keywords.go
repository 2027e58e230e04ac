// Package keywords filters harvested rows against a static keyword list.
package keywords

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"newspipe/internal/models"
)

// Load reads one keyword per line from path, trimming whitespace and skipping
// blank lines. A missing file yields an empty list so the gate stays open
// rather than dropping everything on a misconfigured path.
func Load(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open keywords file: %w", err)
	}
	defer file.Close()

	var list []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" {
			continue
		}
		list = append(list, word)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read keywords file: %w", err)
	}
	return list, nil
}

// Filter admits rows whose text contains at least one keyword as a
// case-sensitive substring. An empty keyword list is an identity pass.
func Filter(rows []models.Message, kw []string) []models.Message {
	if len(kw) == 0 {
		return rows
	}

	filtered := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		for _, word := range kw {
			if strings.Contains(row.Text, word) {
				filtered = append(filtered, row)
				break
			}
		}
	}
	return filtered
}
