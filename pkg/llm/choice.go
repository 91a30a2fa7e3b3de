// Copyright 2026 Tolga Akin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tolgaakin/weft/pkg/message"
)

// ChoiceSelectionStrategy picks one of the alternative response sequences
// produced by a multiple-choice request.
type ChoiceSelectionStrategy interface {
	Select(ctx context.Context, choices [][]message.Message) (int, error)
}

// ChoiceFunc adapts a function to ChoiceSelectionStrategy.
type ChoiceFunc func(ctx context.Context, choices [][]message.Message) (int, error)

func (f ChoiceFunc) Select(ctx context.Context, choices [][]message.Message) (int, error) {
	return f(ctx, choices)
}

// FirstChoice selects the first alternative.
func FirstChoice() ChoiceSelectionStrategy {
	return ChoiceFunc(func(ctx context.Context, choices [][]message.Message) (int, error) {
		if len(choices) == 0 {
			return 0, fmt.Errorf("no choices to select from")
		}
		return 0, nil
	})
}

// AskUserChoice prints the alternatives to out and reads the selected index
// (1-based) from in.
func AskUserChoice(in io.Reader, out io.Writer) ChoiceSelectionStrategy {
	return ChoiceFunc(func(ctx context.Context, choices [][]message.Message) (int, error) {
		if len(choices) == 0 {
			return 0, fmt.Errorf("no choices to select from")
		}
		for i, choice := range choices {
			fmt.Fprintf(out, "[%d] %s\n", i+1, summarizeChoice(choice))
		}
		fmt.Fprintf(out, "select choice [1-%d]: ", len(choices))

		scanner := bufio.NewScanner(in)
		if !scanner.Scan() {
			return 0, fmt.Errorf("no selection read: %w", scanner.Err())
		}
		idx, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
		if err != nil || idx < 1 || idx > len(choices) {
			return 0, fmt.Errorf("invalid selection %q", scanner.Text())
		}
		return idx - 1, nil
	})
}

func summarizeChoice(choice []message.Message) string {
	for _, m := range choice {
		if text := m.Text(); text != "" {
			if len(text) > 120 {
				return text[:120] + "…"
			}
			return text
		}
	}
	return "(empty)"
}
