// Package repl is the interactive read-eval-print loop. Lines execute in
// the interpreter's sandbox; the data stack survives errors and is shown
// after each input that runs without error.
package repl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
	log "github.com/sirupsen/logrus"

	"github.com/tardi-lang/tardi"
	"github.com/tardi-lang/tardi/internal/config"
)

const prompt = ">>> "

// Repl drives one interpreter over a line editor.
type Repl struct {
	interp *tardi.Tardi
	cfg    config.ReplConfig

	errColor   *color.Color
	stackColor *color.Color
}

// New makes a REPL over an interpreter.
func New(interp *tardi.Tardi, cfg config.ReplConfig) *Repl {
	r := &Repl{
		interp:     interp,
		cfg:        cfg,
		errColor:   color.New(color.FgRed),
		stackColor: color.New(color.Faint),
	}
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		r.errColor.DisableColor()
		r.stackColor.DisableColor()
	}
	return r
}

// Run reads and executes lines until bye or end of input.
func (r *Repl) Run() error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if r.cfg.EditMode == config.EditModeVi {
		// the line editor only implements Emacs keys
		log.Warnf("edit_mode %q is not supported by this line editor", r.cfg.EditMode)
	}
	r.loadHistory(line)
	defer r.saveHistory(line)

	for {
		input, err := line.Prompt(prompt)
		if err == liner.ErrPromptAborted {
			continue
		}
		if err == io.EOF {
			fmt.Println()
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		if err := r.interp.ExecuteString(input); err != nil {
			if errors.Is(err, tardi.ErrBye) {
				return nil
			}
			r.errColor.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		r.showStack()
	}
}

func (r *Repl) showStack() {
	stack := r.interp.Stack()
	if len(stack) == 0 {
		r.stackColor.Println("--")
		return
	}
	parts := make([]string, len(stack))
	for i, v := range stack {
		parts[i] = v.Repr()
	}
	r.stackColor.Printf("-- %s\n", strings.Join(parts, " "))
}

func (r *Repl) loadHistory(line *liner.State) {
	if r.cfg.HistoryFile == "" {
		return
	}
	f, err := os.Open(r.cfg.HistoryFile)
	if err != nil {
		return
	}
	defer f.Close()
	if _, err := line.ReadHistory(f); err != nil {
		log.Debugf("reading history: %v", err)
	}
}

func (r *Repl) saveHistory(line *liner.State) {
	if r.cfg.HistoryFile == "" {
		return
	}
	f, err := os.Create(r.cfg.HistoryFile)
	if err != nil {
		log.Debugf("writing history: %v", err)
		return
	}
	defer f.Close()
	if _, err := line.WriteHistory(f); err != nil {
		log.Debugf("writing history: %v", err)
	}
}
