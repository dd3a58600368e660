// Package screens loads the non-trial screens shown around the trial blocks.
//
// Text screens live in UTF-8 files. Lines starting with '#' are comments.
// A line starting with InsertMarker is replaced by a caller-provided insert,
// or dropped when the insert is empty.
package screens

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/justapithecus/flanker/device"
	"github.com/justapithecus/flanker/iox"
	"github.com/justapithecus/flanker/types"
)

// InsertMarker marks the line replaced by the insert string.
const InsertMarker = "<--insert-->"

// Config names the files backing each screen. Empty fields are skipped.
type Config struct {
	// Instruction is an image shown before training.
	Instruction string
	// BeforeExperiment is a text file shown between training and the main block.
	BeforeExperiment string
	// End is a text file shown after the results are persisted.
	End string
	// Insert replaces InsertMarker lines in the text screens.
	Insert string
}

// Set holds the loaded screens. Nil fields are not shown.
type Set struct {
	Instruction      *device.Element
	BeforeExperiment *device.Element
	End              *device.Element
}

// Load reads every configured screen.
// Missing files are configuration errors: they are checked before any trial runs.
func Load(cfg Config) (Set, error) {
	var set Set

	if cfg.Instruction != "" {
		if _, err := os.Stat(cfg.Instruction); err != nil {
			return Set{}, &types.ConfigurationError{Field: "screens.instruction", Msg: err.Error()}
		}
		el := device.Image(cfg.Instruction)
		set.Instruction = &el
	}

	var err error
	if set.BeforeExperiment, err = loadText("screens.before_experiment", cfg.BeforeExperiment, cfg.Insert); err != nil {
		return Set{}, err
	}
	if set.End, err = loadText("screens.end", cfg.End, cfg.Insert); err != nil {
		return Set{}, err
	}
	return set, nil
}

func loadText(field, path, insert string) (*device.Element, error) {
	if path == "" {
		return nil, nil
	}
	msg, err := ReadText(path, insert)
	if err != nil {
		return nil, &types.ConfigurationError{Field: field, Msg: err.Error()}
	}
	el := device.Text(msg)
	return &el, nil
}

// ReadText reads a text screen file.
func ReadText(path, insert string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open screen: %w", err)
	}
	defer iox.DiscardClose(f)

	return Parse(f, insert)
}

// Parse renders a text screen from r.
// Line endings are preserved; the insert is emitted verbatim.
func Parse(r io.Reader, insert string) (string, error) {
	var b strings.Builder
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			switch {
			case strings.HasPrefix(line, "#"):
			case strings.HasPrefix(line, InsertMarker):
				b.WriteString(insert)
			default:
				b.WriteString(line)
			}
		}
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return "", fmt.Errorf("read screen: %w", err)
		}
	}
}
