package main

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// writeJSON prints v as JSON, applying the global --jq filter when set.
func writeJSON(c *cli.Context, v interface{}) error {
	filter := c.String("jq")
	if filter == "" {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	query, err := gojq.Parse(filter)
	if err != nil {
		return fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}

	// gojq operates on generic JSON values, so round-trip through encoding.
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("failed to decode output for filtering: %w", err)
	}

	iter := code.Run(generic)
	for {
		out, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := out.(error); isErr {
			return fmt.Errorf("jq filter failed: %w", err)
		}
		data, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("failed to marshal filtered output: %w", err)
		}
		fmt.Println(string(data))
	}
	return nil
}

// jsonWanted reports whether machine output was requested, either explicitly
// or implied by a --jq filter.
func jsonWanted(c *cli.Context) bool {
	return c.Bool("json") || c.String("jq") != ""
}
