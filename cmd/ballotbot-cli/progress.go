package main

import (
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/schollz/progressbar/v3"
)

// ProgressBar wraps a progressbar instance for batch jobs. A nil
// *ProgressBar is a no-op.
type ProgressBar struct {
	bar *progressbar.ProgressBar
}

// NewProgressBar creates a progress bar on stderr, or nil when quiet.
func NewProgressBar(total int64, description string, quiet bool) *ProgressBar {
	if quiet {
		return nil
	}
	bar := progressbar.NewOptions64(
		total,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &ProgressBar{bar: bar}
}

// Set moves the bar to current.
func (p *ProgressBar) Set(current int64) {
	if p != nil {
		_ = p.bar.Set64(current)
	}
}

// Add advances the bar by n.
func (p *ProgressBar) Add(n int) {
	if p != nil {
		_ = p.bar.Add(n)
	}
}

// SetTotal updates the total value of the progress bar.
func (p *ProgressBar) SetTotal(total int64) {
	if p != nil {
		p.bar.ChangeMax64(total)
	}
}

// Finish completes the progress bar.
func (p *ProgressBar) Finish() {
	if p != nil {
		_ = p.bar.Finish()
	}
}

// Spinner wraps a spinner for indeterminate waits. A nil *Spinner is a no-op.
type Spinner struct {
	spinner *spinner.Spinner
}

// NewSpinner creates a spinner on stderr, or nil when quiet.
func NewSpinner(message string, quiet bool) *Spinner {
	if quiet || !IsTerminal() {
		return nil
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = os.Stderr
	return &Spinner{spinner: s}
}

// Start starts the spinner animation.
func (s *Spinner) Start() {
	if s != nil {
		s.spinner.Start()
	}
}

// Stop stops the spinner animation and clears the line.
func (s *Spinner) Stop() {
	if s != nil {
		s.spinner.Stop()
	}
}
